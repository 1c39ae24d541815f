package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/furniture-store/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

type reviewDoc struct {
	User    string    `bson:"user"`
	Rating  int       `bson:"rating"`
	Comment string    `bson:"comment"`
	Date    time.Time `bson:"date"`
}

type productDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Category    string               `bson:"category"`
	Images      []string             `bson:"images"`
	Stock       int                  `bson:"stock"`
	Featured    bool                 `bson:"featured"`
	Ratings     float64              `bson:"ratings"`
	Reviews     int                  `bson:"reviews"`
	UserReviews []reviewDoc          `bson:"userReviews"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func (d *productDoc) toDomain() product.Product {
	p := product.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Price:       fromDecimal128(d.Price),
		Category:    d.Category,
		Images:      d.Images,
		Stock:       d.Stock,
		Featured:    d.Featured,
		Ratings:     d.Ratings,
		Reviews:     d.Reviews,
		UserReviews: make([]product.Review, len(d.UserReviews)),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for i, r := range d.UserReviews {
		p.UserReviews[i] = product.Review{User: r.User, Rating: r.Rating, Comment: r.Comment, Date: r.Date}
	}
	return p
}

// ProductRepository implements product.Repository backed by MongoDB.
type ProductRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewProductRepository returns a ProductRepository using db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection), now: time.Now}
}

// List returns all products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{}, opts)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, product.ErrNotFound
	}
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p := doc.toDomain()
	return &p, nil
}

// GetByIDs returns the products matching ids. Missing ids are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]product.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("finding products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	products := make([]product.Product, len(docs))
	for i := range docs {
		products[i] = docs[i].toDomain()
	}
	return products, nil
}

// Create stores a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	oid := primitive.NewObjectID()
	now := r.now().UTC().Truncate(time.Millisecond)
	if p.Images == nil {
		p.Images = []string{}
	}

	doc := productDoc{
		ID:          oid,
		Name:        p.Name,
		Description: p.Description,
		Price:       toDecimal128(p.Price),
		Category:    p.Category,
		Images:      p.Images,
		Stock:       p.Stock,
		Featured:    p.Featured,
		UserReviews: []reviewDoc{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	p.ID = oid.Hex()
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update replaces the editable fields of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	oid, ok := objectID(p.ID)
	if !ok {
		return product.ErrNotFound
	}
	p.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"name":        p.Name,
		"description": p.Description,
		"price":       toDecimal128(p.Price),
		"category":    p.Category,
		"images":      p.Images,
		"stock":       p.Stock,
		"featured":    p.Featured,
		"updatedAt":   p.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return product.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AddReview appends a review and recomputes the aggregates with one
// pipeline update.
func (r *ProductRepository) AddReview(ctx context.Context, id string, rv product.Review) (*product.Product, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, product.ErrNotFound
	}
	review := reviewDoc{User: rv.User, Rating: rv.Rating, Comment: rv.Comment, Date: rv.Date.UTC()}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"userReviews": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$userReviews", bson.A{}}},
				bson.A{review},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			"reviews":   bson.M{"$size": "$userReviews"},
			"ratings":   bson.M{"$avg": "$userReviews.rating"},
			"updatedAt": r.now().UTC(),
		}}},
	}

	var doc productDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("adding review to %q: %w", id, err)
	}
	p := doc.toDomain()
	return &p, nil
}
