package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	// Category is a free-text label. It is not a reference to a Category
	// record, so renaming a category does not touch existing products.
	Category    string
	Images      []string
	Stock       int
	Featured    bool
	Ratings     float64
	Reviews     int
	UserReviews []Review
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Thumbnail returns the first image URL, or "" for a product without images.
func (p *Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Review is a single customer review.
type Review struct {
	User    string
	Rating  int
	Comment string
	Date    time.Time
}

// Summarize returns the average rating and the review count for reviews.
func Summarize(reviews []Review) (ratings float64, count int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews)), len(reviews)
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// List returns all products, newest first.
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// Create assigns p.ID and timestamps and stores p.
	Create(ctx context.Context, p *Product) error
	// Update replaces the editable fields of an existing product. Ratings and
	// reviews are left untouched.
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	// AddReview appends r and recomputes ratings and reviews in the same write.
	AddReview(ctx context.Context, id string, r Review) (*Product, error)
}
