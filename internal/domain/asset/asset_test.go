package asset

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

type memStore struct {
	objects map[string][]byte
	failDel map[string]bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failDel: map[string]bool{}}
}

func (m *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = b
	return "https://cdn.example.com/" + key, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	if m.failDel[key] {
		return errors.New("access denied")
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) KeyFor(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, "https://cdn.example.com/")
	return key, ok && key != ""
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestService(store Store) *Service {
	s := NewService(store, "/products/", 1<<20)
	n := 0
	s.newName = func() string {
		n++
		return "img" + string(rune('0'+n))
	}
	return s
}

func TestUpload(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)

	urls, err := s.Upload(context.Background(), []File{
		{Name: "Sofa.PNG", Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader)},
		{Name: "chair.png", ContentType: "image/png", Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.example.com/products/img1.png",
		"https://cdn.example.com/products/img2.png",
	}, urls)
	assert.Equal(t, pngHeader, store.objects["products/img1.png"])
}

func TestUpload_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		files []File
	}{
		{"no files", nil},
		{"not an image", []File{{Name: "notes.txt", Size: 5, Body: strings.NewReader("hello")}}},
		{"too large", []File{{Name: "big.png", Size: 2 << 20, Body: bytes.NewReader(pngHeader)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			_, err := newTestService(store).Upload(context.Background(), tt.files)
			require.Error(t, err)
			assert.True(t, validation.Is(err))
			assert.Empty(t, store.objects)
		})
	}
}

func TestDeleteAll(t *testing.T) {
	store := newMemStore()
	store.objects["products/a.png"] = pngHeader
	store.objects["products/b.png"] = pngHeader
	store.failDel["products/b.png"] = true
	s := newTestService(store)

	results := s.DeleteAll(context.Background(), []string{
		"https://cdn.example.com/products/a.png",
		"https://cdn.example.com/products/b.png",
		"https://elsewhere.example.com/x.png",
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].Deleted)
	assert.Equal(t, "products/a.png", results[0].Key)

	assert.False(t, results[1].Deleted)
	assert.Equal(t, "access denied", results[1].Error)

	assert.False(t, results[2].Deleted)
	assert.Empty(t, results[2].Key)
	assert.Equal(t, ErrUnknownURL.Error(), results[2].Error)

	assert.False(t, AllDeleted(results))
	assert.True(t, AllDeleted(results[:1]))
	assert.NotContains(t, store.objects, "products/a.png")
}

func TestDelete(t *testing.T) {
	store := newMemStore()
	store.objects["products/a.png"] = pngHeader
	s := newTestService(store)

	require.NoError(t, s.Delete(context.Background(), "https://cdn.example.com/products/a.png"))
	require.ErrorIs(t, s.Delete(context.Background(), "https://other/x.png"), ErrUnknownURL)
}
