// Package couponimport bulk-loads coupons from gzipped CSV files.
//
// Rows are "code,discountPercentage,minCartValue,expiryDate[,isActive]". A
// code that occurs more than once, in one file or across files, is ambiguous
// and is skipped; every other valid row is upserted. Files are streamed three
// times so memory stays bounded by the bloom filters and the suspect set
// rather than the row count:
//
//  1. build one bloom filter per file, noting in-file repeats as suspects;
//  2. count exact occurrences of every code that any filter flags;
//  3. upsert the rows whose code occurred once.
package couponimport

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/furniture-store/internal/domain/coupon"
)

// Upserter stores coupons, replacing any with the same code.
type Upserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// Config tunes the import.
type Config struct {
	// ExpectedCodes sizes the bloom filters. Defaults to 1M per file.
	ExpectedCodes uint
	// FalsePositiveRate of each bloom filter. Defaults to 0.001.
	FalsePositiveRate float64
	// Writers is the number of concurrent upserts. Defaults to 8.
	Writers int
	// ProgressEvery logs progress every that many rows per file.
	ProgressEvery int
}

func (c *Config) setDefaults() {
	if c.ExpectedCodes == 0 {
		c.ExpectedCodes = 1_000_000
	}
	if c.FalsePositiveRate <= 0 {
		c.FalsePositiveRate = 0.001
	}
	if c.Writers <= 0 {
		c.Writers = 8
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 100_000
	}
}

// Report summarizes an import.
type Report struct {
	Rows       int
	Invalid    int
	Duplicates int
	Imported   int
	// DuplicateCodes lists the skipped codes.
	DuplicateCodes []string
}

// Importer runs imports into an Upserter.
type Importer struct {
	repo Upserter
	cfg  Config
	lg   *zap.Logger
}

// New creates an Importer.
func New(repo Upserter, cfg Config, lg *zap.Logger) *Importer {
	cfg.setDefaults()
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Importer{repo: repo, cfg: cfg, lg: lg}
}

// Run imports files.
func (im *Importer) Run(ctx context.Context, files []string) (*Report, error) {
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, errors.Wrapf(err, "check file %s", f)
		}
	}

	im.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, suspects, err := im.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build filters")
	}

	im.lg.Info("Pass 2: counting flagged codes")
	dups, err := im.findDuplicates(ctx, files, filters, suspects)
	if err != nil {
		return nil, errors.Wrap(err, "find duplicates")
	}
	im.lg.Info("Duplicates found", zap.Int("count", len(dups)))

	im.lg.Info("Pass 3: writing coupons")
	report, err := im.write(ctx, files, dups)
	if err != nil {
		return nil, errors.Wrap(err, "write coupons")
	}
	for code := range dups {
		report.DuplicateCodes = append(report.DuplicateCodes, code)
	}
	return report, nil
}

func (im *Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, []map[string]struct{}, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	suspects := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(im.cfg.ExpectedCodes, im.cfg.FalsePositiveRate)
			repeats := make(map[string]struct{})
			n, err := streamFile(ctx, path, func(_ int, rec []string) error {
				code := coupon.NormalizeCode(field(rec, 0))
				if code == "" {
					return nil
				}
				if filter.TestAndAddString(code) {
					repeats[code] = struct{}{}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			im.lg.Info("Pass 1 complete", zap.String("file", path), zap.Int("rows", n))
			filters[i], suspects[i] = filter, repeats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return filters, suspects, nil
}

// findDuplicates counts exact occurrences of every code flagged by another
// file's filter or repeated in its own file. Bloom false positives are
// counted once and so are not reported.
func (im *Importer) findDuplicates(
	ctx context.Context,
	files []string,
	filters []*bloom.BloomFilter,
	suspects []map[string]struct{},
) (map[string]struct{}, error) {
	var (
		mu     sync.Mutex
		counts = make(map[string]int)
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			local := make(map[string]int)
			_, err := streamFile(ctx, path, func(_ int, rec []string) error {
				code := coupon.NormalizeCode(field(rec, 0))
				if code == "" {
					return nil
				}
				if _, ok := suspects[i][code]; ok {
					local[code]++
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						local[code]++
						return nil
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}

			mu.Lock()
			for code, n := range local {
				counts[code] += n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dups := make(map[string]struct{})
	for code, n := range counts {
		if n > 1 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

func (im *Importer) write(ctx context.Context, files []string, dups map[string]struct{}) (*Report, error) {
	var (
		mu     sync.Mutex
		report Report
	)
	count := func(f func(r *Report)) {
		mu.Lock()
		f(&report)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.cfg.Writers + 1)
	g.Go(func() error {
		for _, path := range files {
			_, err := streamFile(ctx, path, func(line int, rec []string) error {
				count(func(r *Report) { r.Rows++ })

				in, err := parseRecord(rec)
				if err == nil {
					var c *coupon.Coupon
					if c, err = in.Build(); err == nil {
						if _, dup := dups[c.Code]; dup {
							count(func(r *Report) { r.Duplicates++ })
							return nil
						}
						g.Go(func() error {
							if err := im.repo.Upsert(ctx, c); err != nil {
								return errors.Wrapf(err, "upsert %s", c.Code)
							}
							count(func(r *Report) {
								r.Imported++
								if r.Imported%im.cfg.ProgressEvery == 0 {
									im.lg.Info("Write progress", zap.Int("imported", r.Imported))
								}
							})
							return nil
						})
						return nil
					}
				}
				im.lg.Warn("Skipping invalid row",
					zap.String("file", path),
					zap.Int("line", line),
					zap.Error(err),
				)
				count(func(r *Report) { r.Invalid++ })
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &report, nil
}

// parseRecord maps a CSV record to coupon input. A bare YYYY-MM-DD expiry
// lasts until the end of that day (UTC).
func parseRecord(rec []string) (coupon.Input, error) {
	if len(rec) < 4 {
		return coupon.Input{}, errors.Errorf("want at least 4 fields, got %d", len(rec))
	}
	pct, err := decimal.NewFromString(field(rec, 1))
	if err != nil {
		return coupon.Input{}, errors.Wrap(err, "parse discount percentage")
	}
	minCart := decimal.Zero
	if v := field(rec, 2); v != "" {
		if minCart, err = decimal.NewFromString(v); err != nil {
			return coupon.Input{}, errors.Wrap(err, "parse min cart value")
		}
	}
	expiry, err := parseExpiry(field(rec, 3))
	if err != nil {
		return coupon.Input{}, err
	}

	in := coupon.Input{
		Code:               field(rec, 0),
		DiscountPercentage: pct,
		MinCartValue:       minCart,
		ExpiryDate:         expiry,
	}
	if v := strings.ToLower(field(rec, 4)); v != "" {
		active := v == "true" || v == "1" || v == "yes"
		in.IsActive = &active
	}
	return in, nil
}

func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse expiry %q", s)
	}
	return t.Add(24*time.Hour - time.Nanosecond), nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// streamFile calls fn for every record of a gzipped CSV file, skipping a
// header row whose first field is "code". It returns the number of records.
func streamFile(ctx context.Context, path string, fn func(line int, rec []string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.TrimLeadingSpace = true

	n := 0
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrapf(err, "read line %d", line)
		}
		if line == 1 && strings.EqualFold(field(rec, 0), "code") {
			continue
		}
		n++
		if err := fn(line, rec); err != nil {
			return n, err
		}
	}
}
