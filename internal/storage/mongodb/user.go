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

	"github.com/xenking/furniture-store/internal/domain/auth"
)

var (
	_ auth.UserRepository = (*UserRepository)(nil)
	_ auth.OTPRepository  = (*OTPRepository)(nil)
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *userDoc) toDomain() *auth.User {
	return &auth.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         auth.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// UserRepository implements auth.UserRepository backed by MongoDB.
type UserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewUserRepository returns a UserRepository using db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection), now: time.Now}
}

// FindByEmail returns the user with the given normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindAdmin returns the oldest admin account.
func (r *UserRepository) FindAdmin(ctx context.Context) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"role": string(auth.RoleAdmin)},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*auth.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return doc.toDomain(), nil
}

// Create stores a new user. Returns auth.ErrExists when the email is taken.
func (r *UserRepository) Create(ctx context.Context, u *auth.User) error {
	oid := primitive.NewObjectID()
	now := r.now().UTC().Truncate(time.Millisecond)
	u.Email = auth.NormalizeEmail(u.Email)

	_, err := r.coll.InsertOne(ctx, userDoc{
		ID:           oid,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrExists
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	u.ID = oid.Hex()
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// UpdateCredentials changes the email and, when passwordHash is set, the
// password of a user.
func (r *UserRepository) UpdateCredentials(ctx context.Context, id, email, passwordHash string) (*auth.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, auth.ErrNotFound
	}
	set := bson.M{"email": auth.NormalizeEmail(email), "updatedAt": r.now().UTC()}
	if passwordHash != "" {
		set["passwordHash"] = passwordHash
	}

	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrExists
		}
		return nil, fmt.Errorf("updating user %q: %w", id, err)
	}
	return doc.toDomain(), nil
}

// OTPRepository implements auth.OTPRepository backed by MongoDB. Expired
// entries are removed by a TTL index; Consume also checks the expiry since
// the TTL monitor runs only periodically.
type OTPRepository struct {
	coll *mongo.Collection
}

// NewOTPRepository returns an OTPRepository using db.
func NewOTPRepository(db *mongo.Database) *OTPRepository {
	return &OTPRepository{coll: db.Collection(otpsCollection)}
}

// Put replaces the code stored under key.
func (r *OTPRepository) Put(ctx context.Context, key, codeHash string, expiresAt time.Time) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		bson.M{"_id": key, "codeHash": codeHash, "expiresAt": expiresAt.UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	return nil
}

// Consume deletes a matching, unexpired entry.
func (r *OTPRepository) Consume(ctx context.Context, key, codeHash string, now time.Time) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"_id":       key,
		"codeHash":  codeHash,
		"expiresAt": bson.M{"$gt": now.UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("consuming otp: %w", err)
	}
	return res.DeletedCount == 1, nil
}
