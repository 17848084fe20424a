package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ArtifactStore persists a rendered export and returns its locator. Put either
// stores the whole artifact and returns a locator, or stores nothing.
type ArtifactStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ErrInvalidName is returned for artifact names that are not generated ids.
var ErrInvalidName = errors.New("invalid artifact name")

var artifactNameRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(csv|pdf)$`)

// ValidName reports whether name looks like a generated artifact file name.
func ValidName(name string) bool {
	return artifactNameRe.MatchString(name)
}

// LocalStore writes artifacts to a directory served by this process under
// /api/v1/exports/{name}.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, name, _ string, data []byte) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close artifact: %w", err)
	}
	// rename is atomic, so a reader never sees a partial file
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		cleanup()
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return s.baseURL + "/api/v1/exports/" + name, nil
}

// Open returns the stored artifact for download.
func (s *LocalStore) Open(name string) (*os.File, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return os.Open(filepath.Join(s.dir, name))
}
