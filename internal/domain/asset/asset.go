// Package asset manages product images at an external object store.
package asset

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

// ErrUnknownURL is returned for a URL that does not point into the store.
var ErrUnknownURL = errors.New("Could not extract object key")

// DefaultMaxSize is the largest accepted upload.
const DefaultMaxSize = 10 << 20

// Store is an object store serving public URLs.
type Store interface {
	// Put uploads body under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFor maps a public URL back to its object key.
	KeyFor(url string) (string, bool)
}

// File is an uploaded file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DeleteResult reports the outcome for one URL.
type DeleteResult struct {
	URL     string
	Key     string
	Deleted bool
	Error   string
}

// Service validates uploads and names objects.
type Service struct {
	store   Store
	prefix  string
	maxSize int64
	newName func() string
}

// NewService creates a Service storing objects under prefix.
func NewService(store Store, prefix string, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		maxSize: maxSize,
		newName: func() string { return uuid.NewString() },
	}
}

// Upload stores every file and returns their URLs in order. The first
// failure aborts the remaining uploads.
func (s *Service) Upload(ctx context.Context, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, validation.Errorf("No files provided.")
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		if f.Size > s.maxSize {
			return nil, validation.Errorf("%s exceeds the %d MB limit", f.Name, s.maxSize>>20)
		}
		body, ctype, err := sniff(f)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(ctype, "image/") {
			return nil, validation.Errorf("%s is not an image", f.Name)
		}

		url, err := s.store.Put(ctx, s.key(f.Name), ctype, body, f.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "upload %s", f.Name)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Delete removes the object behind url.
func (s *Service) Delete(ctx context.Context, url string) error {
	key, ok := s.store.KeyFor(url)
	if !ok {
		return ErrUnknownURL
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// DeleteAll removes every URL and reports each outcome. It never stops
// early.
func (s *Service) DeleteAll(ctx context.Context, urls []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(urls))
	for _, u := range urls {
		r := DeleteResult{URL: u}
		key, ok := s.store.KeyFor(u)
		if !ok {
			r.Error = ErrUnknownURL.Error()
			results = append(results, r)
			continue
		}
		r.Key = key
		if err := s.store.Delete(ctx, key); err != nil {
			r.Error = err.Error()
			zctx.From(ctx).Warn("Delete image", zap.String("key", key), zap.Error(err))
		} else {
			r.Deleted = true
		}
		results = append(results, r)
	}
	return results
}

// AllDeleted reports whether every result succeeded.
func AllDeleted(results []DeleteResult) bool {
	for _, r := range results {
		if !r.Deleted {
			return false
		}
	}
	return true
}

func (s *Service) key(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if s.prefix == "" {
		return s.newName() + ext
	}
	return s.prefix + "/" + s.newName() + ext
}

// sniff detects the content type from the first bytes of the file and
// returns a reader that still yields the whole body.
func sniff(f File) (io.Reader, string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", errors.Wrapf(err, "read %s", f.Name)
	}
	head = head[:n]
	ctype := http.DetectContentType(head)
	if ctype == "application/octet-stream" && strings.HasPrefix(f.ContentType, "image/") {
		ctype = f.ContentType
	}
	return io.MultiReader(bytes.NewReader(head), f.Body), ctype, nil
}
