package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

// ImageRemover deletes an image from the asset host.
type ImageRemover interface {
	Delete(ctx context.Context, url string) error
}

// Input holds the admin-editable fields of a product.
type Input struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Images      []string
	Stock       int
	Featured    bool
}

// Service implements catalog management on top of a Repository.
type Service struct {
	repo   Repository
	images ImageRemover
	now    func() time.Time
}

// NewService creates a product Service. images may be nil when no asset host
// is configured, in which case product deletion leaves images in place.
func NewService(repo Repository, images ImageRemover) *Service {
	return &Service{repo: repo, images: images, now: time.Now}
}

// List returns the whole catalog, newest first.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates in and stores a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	p, err := in.build()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update validates in and replaces the editable fields of product id.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	p, err := in.build()
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update product")
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes the product images from the asset host and then the product
// itself. Image removal failures are logged and do not stop the deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if s.images != nil {
		lg := zctx.From(ctx)
		for _, url := range p.Images {
			if err := s.images.Delete(ctx, url); err != nil {
				lg.Warn("Failed to delete product image",
					zap.String("product_id", id),
					zap.String("url", url),
					zap.Error(err),
				)
				continue
			}
			lg.Info("Deleted product image", zap.String("product_id", id), zap.String("url", url))
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete product")
	}
	return nil
}

// AddReview validates and appends a customer review.
func (s *Service) AddReview(ctx context.Context, id, user string, rating int, comment string) (*Product, error) {
	user = strings.TrimSpace(user)
	comment = strings.TrimSpace(comment)
	switch {
	case user == "":
		return nil, validation.Required("user")
	case comment == "":
		return nil, validation.Required("comment")
	case rating < 1 || rating > 5:
		return nil, validation.Errorf("rating must be between 1 and 5")
	}

	p, err := s.repo.AddReview(ctx, id, Review{
		User:    user,
		Rating:  rating,
		Comment: comment,
		Date:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "add review")
	}
	return p, nil
}

func (in Input) build() (*Product, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	switch {
	case name == "":
		return nil, validation.Required("name")
	case strings.TrimSpace(in.Description) == "":
		return nil, validation.Required("description")
	case category == "":
		return nil, validation.Required("category")
	case in.Price.IsNegative():
		return nil, validation.Errorf("price must not be negative")
	case !in.Price.Equal(in.Price.Truncate(0)):
		return nil, validation.Errorf("price must be a whole amount")
	case in.Stock < 0:
		return nil, validation.Errorf("stock must not be negative")
	case len(in.Images) == 0:
		return nil, validation.Errorf("at least one image is required")
	}

	return &Product{
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		Category:    category,
		Images:      in.Images,
		Stock:       in.Stock,
		Featured:    in.Featured,
	}, nil
}
