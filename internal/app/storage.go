package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/auth"
	"github.com/xenking/furniture-store/internal/domain/category"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/order"
	"github.com/xenking/furniture-store/internal/domain/product"
	"github.com/xenking/furniture-store/internal/storage/mongodb"
	"github.com/xenking/furniture-store/internal/storage/postgres"
)

// Store bundles the repositories of the configured storage driver.
type Store struct {
	Products   product.Repository
	Categories category.Repository
	Coupons    coupon.Repository
	Orders     order.Repository
	Users      auth.UserRepository
	OTPs       auth.OTPRepository

	driver string
	ping   func(ctx context.Context) error
	close  func()
}

// Driver returns the storage driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks that the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Close releases the database connections.
func (s *Store) Close() { s.close() }

// OpenStore connects to the configured database and prepares its schema:
// migrations for PostgreSQL, indexes for MongoDB.
func OpenStore(ctx context.Context, cfg StorageConfig) (*Store, error) {
	lg := zctx.From(ctx)
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Storage ready", zap.String("driver", cfg.Driver))
		return &Store{
			Products:   postgres.NewProductRepository(pool),
			Categories: postgres.NewCategoryRepository(pool),
			Coupons:    postgres.NewCouponRepository(pool),
			Orders:     postgres.NewOrderRepository(pool),
			Users:      postgres.NewUserRepository(pool),
			OTPs:       postgres.NewOTPRepository(pool),
			driver:     cfg.Driver,
			ping:       pool.Ping,
			close:      pool.Close,
		}, nil

	case DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		disconnect := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				lg.Warn("Disconnect mongo", zap.Error(err))
			}
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			disconnect()
			return nil, errors.Wrap(err, "ensure indexes")
		}
		lg.Info("Storage ready", zap.String("driver", cfg.Driver), zap.String("database", cfg.MongoDatabase))
		return &Store{
			Products:   mongodb.NewProductRepository(db),
			Categories: mongodb.NewCategoryRepository(db),
			Coupons:    mongodb.NewCouponRepository(db),
			Orders:     mongodb.NewOrderRepository(db),
			Users:      mongodb.NewUserRepository(db),
			OTPs:       mongodb.NewOTPRepository(db),
			driver:     cfg.Driver,
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			close: disconnect,
		}, nil
	}
	return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
}
