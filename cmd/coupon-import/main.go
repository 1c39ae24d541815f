// Command coupon-import loads coupons from gzipped CSV files into the store.
//
//	coupon-import coupons1.csv.gz coupons2.csv.gz
//	coupon-import -dir data
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/app"
	"github.com/xenking/furniture-store/internal/couponimport"
)

func main() {
	var (
		dir     string
		writers int
		expect  uint
	)
	flag.StringVar(&dir, "dir", "", "import every *.csv.gz file in this directory")
	flag.IntVar(&writers, "writers", 8, "concurrent upserts")
	flag.UintVar(&expect, "expected-codes", 1_000_000, "expected codes per file, sizes the bloom filters")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	files := flag.Args()
	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.csv.gz"))
		if err != nil {
			lg.Fatal("List input files", zap.Error(err))
		}
		files = append(files, matches...)
	}

	if err := run(zctx.Base(ctx, lg), lg, files, couponimport.Config{
		ExpectedCodes: expect,
		Writers:       writers,
	}); err != nil {
		lg.Fatal("Import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, files []string, cfg couponimport.Config) error {
	if len(files) == 0 {
		return errors.New("no input files: pass paths or -dir")
	}

	appCfg, err := app.LoadToolConfig()
	if err != nil {
		return err
	}
	store, err := app.OpenStore(ctx, appCfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer store.Close()

	report, err := couponimport.New(store.Coupons, cfg, lg).Run(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Import complete",
		zap.String("driver", store.Driver()),
		zap.Int("rows", report.Rows),
		zap.Int("imported", report.Imported),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("invalid", report.Invalid),
		zap.Strings("duplicate_codes", report.DuplicateCodes),
	)
	return nil
}
