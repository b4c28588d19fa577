package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LocalStore keeps blobs under a directory. Download URLs point back at the
// API and carry a signed token naming the key.
type LocalStore struct {
	root      string
	publicURL string
	secret    []byte
	now       func() time.Time
}

type fileClaims struct {
	Filename string `json:"fn"`
	jwt.RegisteredClaims
}

// NewLocalStore creates root if needed.
func NewLocalStore(root, publicURL, secret string) (*LocalStore, error) {
	if root == "" {
		root = "data/documents"
	}
	if len(secret) < 16 {
		return nil, errors.New("local storage needs a signing secret of at least 16 characters")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		secret:    []byte(secret),
		now:       time.Now,
	}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes r to key through a temp file so readers never see partial blobs.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), p)
}

// Get opens the blob at key.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

// Delete removes the blob at key. Missing keys are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns <publicURL>/api/files/<token>, valid for expiry.
func (s *LocalStore) PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	now := s.now()
	claims := fileClaims{
		Filename: SanitizeFilename(filename),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return s.publicURL + "/api/files/" + token, nil
}

// ResolveToken validates a download token and returns its key and filename.
func (s *LocalStore) ResolveToken(token string) (key, filename string, err error) {
	var claims fileClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", "", fmt.Errorf("invalid download token: %w", err)
	}
	if err := validateKey(claims.Subject); err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Filename, nil
}

// ContentDisposition is the header value for serving filename.
func ContentDisposition(filename string) string {
	return contentDisposition(filename)
}
