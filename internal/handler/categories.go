package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/furniture-store/internal/domain/category"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.Categories.List(c)
	if err != nil {
		respondError(c, err, "Failed to fetch categories")
		return
	}
	respond(c, http.StatusOK, gin.H{"categories": mapSlice(categories, toCategoryJSON)})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := category.New(req.Name, req.Image, req.Description)
	if err != nil {
		respondError(c, err, "")
		return
	}
	if err := h.Categories.Create(c, cat); err != nil {
		respondError(c, err, "Failed to create category")
		return
	}
	respond(c, http.StatusCreated, gin.H{"category": toCategoryJSON(cat)})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.Categories.Delete(c, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete category")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
