package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/product"
)

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
}

func (r productRequest) input() product.Input {
	return product.Input(r)
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.Products.List(c)
	if err != nil {
		respondError(c, err, "Failed to fetch products")
		return
	}
	respond(c, http.StatusOK, gin.H{"products": mapSlice(products, toProductJSON)})
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Products.Get(c, c.Param("id"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	respond(c, http.StatusOK, gin.H{"product": toProductJSON(p)})
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Products.Create(c, req.input())
	if err != nil {
		respondError(c, err, "Failed to create product")
		return
	}
	respond(c, http.StatusCreated, gin.H{"product": toProductJSON(p)})
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Products.Update(c, c.Param("id"), req.input())
	if err != nil {
		respondError(c, err, "Failed to update product")
		return
	}
	respond(c, http.StatusOK, gin.H{"product": toProductJSON(p)})
}

// DeleteProduct removes the product and, best effort, its images.
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.Products.Delete(c, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete product")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Product and associated images deleted"})
}

type reviewRequest struct {
	User    string `json:"user"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) AddReview(c *gin.Context) {
	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Products.AddReview(c, c.Param("id"), req.User, req.Rating, req.Comment)
	if err != nil {
		respondError(c, err, "Failed to add review")
		return
	}
	respond(c, http.StatusCreated, gin.H{"product": toProductJSON(p)})
}
