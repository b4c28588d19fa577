package ports

import (
	"context"
	"io"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/models"
)

// BlobStore stores document bytes under opaque keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PresignedURL returns a URL valid for expiry that downloads key as filename.
	PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

// SearchIndex is a full-text index of contacts, companies and deals.
type SearchIndex interface {
	Upsert(ctx context.Context, docs []models.SearchDocument) error
	Remove(ctx context.Context, ids []string) error
	Search(ctx context.Context, userID, term string, limit int) ([]models.SearchHit, error)
	Healthy(ctx context.Context) bool
}

// Completer is an LLM provider that turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Cache stores JSON-serializable values with a TTL.
type Cache interface {
	// Get decodes the value at key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
