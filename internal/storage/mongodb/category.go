package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/furniture-store/internal/domain/category"
)

var _ category.Repository = (*CategoryRepository)(nil)

type categoryDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Image       string             `bson:"image"`
	Description string             `bson:"description"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// CategoryRepository implements category.Repository backed by MongoDB.
type CategoryRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewCategoryRepository returns a CategoryRepository using db.
func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{coll: db.Collection(categoriesCollection), now: time.Now}
}

// List returns all categories sorted by name.
func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding categories: %w", err)
	}
	cats := make([]category.Category, len(docs))
	for i, d := range docs {
		cats[i] = category.Category{
			ID:          d.ID.Hex(),
			Name:        d.Name,
			Image:       d.Image,
			Description: d.Description,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
	}
	return cats, nil
}

// Create stores a category. Returns category.ErrExists on a duplicate name.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	oid := primitive.NewObjectID()
	now := r.now().UTC().Truncate(time.Millisecond)
	_, err := r.coll.InsertOne(ctx, categoryDoc{
		ID:          oid,
		Name:        c.Name,
		Image:       c.Image,
		Description: c.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return category.ErrExists
		}
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	c.ID = oid.Hex()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// Delete removes a category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return category.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return category.ErrNotFound
	}
	return nil
}
