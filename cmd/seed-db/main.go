// Command seed-db loads a starter catalog into the store and makes sure an
// admin account exists. Categories and coupons are upserted by name and code;
// products are only inserted into an empty catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/app"
	"github.com/xenking/furniture-store/internal/domain/auth"
	"github.com/xenking/furniture-store/internal/domain/category"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/notify"
	"github.com/xenking/furniture-store/internal/domain/product"
)

type catalog struct {
	Categories []struct {
		Name        string `json:"name"`
		Image       string `json:"image"`
		Description string `json:"description"`
	} `json:"categories"`
	Products []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Category    string          `json:"category"`
		Images      []string        `json:"images"`
		Stock       int             `json:"stock"`
		Featured    bool            `json:"featured"`
	} `json:"products"`
	Coupons []struct {
		Code               string          `json:"code"`
		DiscountPercentage decimal.Decimal `json:"discountPercentage"`
		MinCartValue       decimal.Decimal `json:"minCartValue"`
		ExpiryDate         string          `json:"expiryDate"`
	} `json:"coupons"`
}

func main() {
	var catalogFile string
	flag.StringVar(&catalogFile, "catalog", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(zctx.Base(ctx, lg), lg, catalogFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, catalogFile string) error {
	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}
	var cat catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return errors.Wrap(err, "parse catalog")
	}

	cfg, err := app.LoadToolConfig()
	if err != nil {
		return err
	}
	store, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer store.Close()
	lg.Info("Connected", zap.String("driver", store.Driver()))

	for _, c := range cat.Categories {
		rec, err := category.New(c.Name, c.Image, c.Description)
		if err != nil {
			return errors.Wrapf(err, "category %q", c.Name)
		}
		switch err := store.Categories.Create(ctx, rec); {
		case errors.Is(err, category.ErrExists):
			lg.Info("Category exists", zap.String("name", c.Name))
		case err != nil:
			return errors.Wrapf(err, "create category %q", c.Name)
		}
	}

	existing, err := store.Products.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	if len(existing) > 0 {
		lg.Info("Catalog not empty, skipping products", zap.Int("count", len(existing)))
	} else {
		products := product.NewService(store.Products, nil)
		for _, p := range cat.Products {
			if _, err := products.Create(ctx, product.Input{
				Name:        p.Name,
				Description: p.Description,
				Price:       p.Price,
				Category:    p.Category,
				Images:      p.Images,
				Stock:       p.Stock,
				Featured:    p.Featured,
			}); err != nil {
				return errors.Wrapf(err, "create product %q", p.Name)
			}
		}
		lg.Info("Seeded products", zap.Int("count", len(cat.Products)))
	}

	for _, c := range cat.Coupons {
		expiry, err := time.Parse(time.DateOnly, c.ExpiryDate)
		if err != nil {
			return errors.Wrapf(err, "coupon %q expiry", c.Code)
		}
		rec, err := coupon.Input{
			Code:               c.Code,
			DiscountPercentage: c.DiscountPercentage,
			MinCartValue:       c.MinCartValue,
			ExpiryDate:         expiry.Add(24*time.Hour - time.Nanosecond),
		}.Build()
		if err != nil {
			return errors.Wrapf(err, "coupon %q", c.Code)
		}
		if err := store.Coupons.Upsert(ctx, rec); err != nil {
			return errors.Wrapf(err, "upsert coupon %q", c.Code)
		}
	}
	lg.Info("Seeded coupons", zap.Int("count", len(cat.Coupons)))

	admins := auth.NewAdminService(store.Users, store.OTPs, auth.NewSessions(cfg.Auth.Secret),
		notify.NopMailer{Logger: lg.Named("mail")},
		auth.AdminConfig{
			FallbackEmail:    cfg.Auth.AdminEmail,
			FallbackPassword: cfg.Auth.AdminPassword,
			OTPSecret:        cfg.Auth.OTPSecret,
			OTPTTL:           cfg.Auth.OTPTTL,
		},
	)
	if err := admins.EnsureAdmin(ctx); err != nil {
		return errors.Wrap(err, "ensure admin")
	}
	return nil
}
