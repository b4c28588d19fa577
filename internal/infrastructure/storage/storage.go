// Package storage keeps document blobs in S3-compatible object storage,
// or on the local filesystem when no endpoint is configured.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrBlobNotFound is returned when a key has no blob.
var ErrBlobNotFound = errors.New("blob not found")

// New returns a MinIO store when an endpoint is configured, else a local store.
func New(ctx context.Context, cfg config.StorageConfig, signingSecret string) (ports.BlobStore, error) {
	if cfg.Endpoint != "" {
		return NewMinioStore(ctx, cfg)
	}
	return NewLocalStore(cfg.LocalDir, cfg.PublicURL, signingSecret)
}

// ObjectKey builds the key for a document: owner/document/name.
func ObjectKey(userID, documentID, filename string) string {
	return userID + "/" + documentID + "/" + SanitizeFilename(filename)
}

// SanitizeFilename keeps the base name and replaces characters that are
// unsafe in object keys and headers.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == 0x7f, strings.ContainsRune(`"/\:*?<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "file"
	}
	return out
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// contentDisposition renders an attachment header for filename.
func contentDisposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": SanitizeFilename(filename)})
}
