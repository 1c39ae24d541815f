package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furniture-store/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

const productColumns = `id, name, description, price, category, images, stock, featured,
	ratings, reviews, user_reviews, created_at, updated_at`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products
	(id, name, description, price, category, images, stock, featured, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	updateProductSQL = `UPDATE products SET
	name = $2, description = $3, price = $4, category = $5, images = $6,
	stock = $7, featured = $8, updated_at = $9
	WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	// addReviewSQL appends one review and recomputes the aggregates from the
	// stored reviews plus the new one in the same statement.
	addReviewSQL = `UPDATE products SET
	user_reviews = user_reviews || $2::jsonb,
	reviews = jsonb_array_length(user_reviews) + 1,
	ratings = (
		(SELECT COALESCE(SUM((r->>'rating')::int), 0) FROM jsonb_array_elements(user_reviews) AS r) + $3
	)::float8 / (jsonb_array_length(user_reviews) + 1),
	updated_at = $4
	WHERE id = $1
	RETURNING ` + productColumns
)

// reviewRow is the JSONB shape of a review.
type reviewRow struct {
	User    string    `json:"user"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment"`
	Date    time.Time `json:"date"`
}

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool, now: time.Now}
}

// List returns all products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products matching ids in a single query. Missing ids
// are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

// Create stores a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	p.ID = uuid.NewString()
	p.CreatedAt = r.now().UTC()
	p.UpdatedAt = p.CreatedAt
	if p.Images == nil {
		p.Images = []string{}
	}

	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Images, p.Stock, p.Featured, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// Update replaces the editable fields of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	p.UpdatedAt = r.now().UTC()
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Images, p.Stock, p.Featured, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AddReview appends a review and recomputes ratings atomically.
func (r *ProductRepository) AddReview(ctx context.Context, id string, rv product.Review) (*product.Product, error) {
	payload, err := json.Marshal([]reviewRow{{
		User:    rv.User,
		Rating:  rv.Rating,
		Comment: rv.Comment,
		Date:    rv.Date.UTC(),
	}})
	if err != nil {
		return nil, fmt.Errorf("marshaling review: %w", err)
	}

	rows, err := r.pool.Query(ctx, addReviewSQL, id, payload, rv.Rating, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("adding review to %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("adding review to %q: %w", id, err)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p       product.Product
		reviews []reviewRow
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Images, &p.Stock, &p.Featured,
		&p.Ratings, &p.Reviews, &reviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return product.Product{}, err
	}

	p.UserReviews = make([]product.Review, len(reviews))
	for i, rv := range reviews {
		p.UserReviews[i] = product.Review{
			User:    rv.User,
			Rating:  rv.Rating,
			Comment: rv.Comment,
			Date:    rv.Date,
		}
	}
	return p, nil
}
