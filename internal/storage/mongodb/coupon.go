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

	"github.com/xenking/furniture-store/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

type couponDoc struct {
	ID                 primitive.ObjectID   `bson:"_id"`
	Code               string               `bson:"code"`
	DiscountPercentage primitive.Decimal128 `bson:"discountPercentage"`
	MinCartValue       primitive.Decimal128 `bson:"minCartValue"`
	ExpiryDate         time.Time            `bson:"expiryDate"`
	IsActive           bool                 `bson:"isActive"`
	CreatedAt          time.Time            `bson:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt"`
}

func (d *couponDoc) toDomain() coupon.Coupon {
	return coupon.Coupon{
		ID:                 d.ID.Hex(),
		Code:               d.Code,
		DiscountPercentage: fromDecimal128(d.DiscountPercentage),
		MinCartValue:       fromDecimal128(d.MinCartValue),
		ExpiryDate:         d.ExpiryDate,
		IsActive:           d.IsActive,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// CouponRepository implements coupon.Repository backed by MongoDB.
type CouponRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewCouponRepository returns a CouponRepository using db.
func NewCouponRepository(db *mongo.Database) *CouponRepository {
	return &CouponRepository{coll: db.Collection(couponsCollection), now: time.Now}
}

// FindByCode looks up a coupon by its normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var doc couponDoc
	if err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	c := doc.toDomain()
	return &c, nil
}

// ListActive returns active coupons that have not expired at now.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"isActive": true, "expiryDate": bson.M{"$gte": now}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	var docs []couponDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding coupons: %w", err)
	}
	coupons := make([]coupon.Coupon, len(docs))
	for i := range docs {
		coupons[i] = docs[i].toDomain()
	}
	return coupons, nil
}

// Create stores a new coupon. Returns coupon.ErrExists on a duplicate code.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	oid := primitive.NewObjectID()
	now := r.now().UTC().Truncate(time.Millisecond)
	_, err := r.coll.InsertOne(ctx, couponDoc{
		ID:                 oid,
		Code:               c.Code,
		DiscountPercentage: toDecimal128(c.DiscountPercentage),
		MinCartValue:       toDecimal128(c.MinCartValue),
		ExpiryDate:         c.ExpiryDate,
		IsActive:           c.IsActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return coupon.ErrExists
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	c.ID = oid.Hex()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// Upsert creates c or overwrites the coupon with the same code.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	var doc couponDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"code": c.Code},
		bson.M{
			"$set": bson.M{
				"discountPercentage": toDecimal128(c.DiscountPercentage),
				"minCartValue":       toDecimal128(c.MinCartValue),
				"expiryDate":         c.ExpiryDate,
				"isActive":           c.IsActive,
				"updatedAt":          now,
			},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	c.ID = doc.ID.Hex()
	c.CreatedAt = doc.CreatedAt
	c.UpdatedAt = doc.UpdatedAt
	return nil
}
