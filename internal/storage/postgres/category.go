package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furniture-store/internal/domain/category"
)

var _ category.Repository = (*CategoryRepository)(nil)

const (
	listCategoriesSQL = `SELECT id, name, image, description, created_at, updated_at
	FROM categories ORDER BY name`

	insertCategorySQL = `INSERT INTO categories (id, name, image, description, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool, now: time.Now}
}

// List returns all categories sorted by name.
func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	cats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (category.Category, error) {
		var c category.Category
		err := row.Scan(&c.ID, &c.Name, &c.Image, &c.Description, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning categories: %w", err)
	}
	return cats, nil
}

// Create stores a category. Returns category.ErrExists on a duplicate name.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	c.UpdatedAt = c.CreatedAt

	_, err := r.pool.Exec(ctx, insertCategorySQL, c.ID, c.Name, c.Image, c.Description, c.CreatedAt)
	if err != nil {
		if uniqueViolationOn(err, "categories_name_key") {
			return category.ErrExists
		}
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	return nil
}

// Delete removes a category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}
	return nil
}
