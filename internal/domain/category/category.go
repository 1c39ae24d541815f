// Package category manages the product category list.
//
// Products refer to categories by name only. Renaming or deleting a category
// does not cascade to products that carry the old label.
package category

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

var (
	// ErrNotFound is returned when a category does not exist.
	ErrNotFound = errors.New("category not found")
	// ErrExists is returned when a category with the same name already exists.
	ErrExists = errors.New("category already exists")
)

// Category is a named product grouping shown in the storefront navigation.
type Category struct {
	ID          string
	Name        string
	Image       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for categories.
type Repository interface {
	// List returns all categories sorted by name.
	List(ctx context.Context) ([]Category, error)
	// Create stores c and assigns its ID. Returns ErrExists on a duplicate name.
	Create(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}

// New validates the input and returns a category ready to be stored.
func New(name, image, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation.Required("name")
	}
	return &Category{
		Name:        name,
		Image:       strings.TrimSpace(image),
		Description: strings.TrimSpace(description),
	}, nil
}
