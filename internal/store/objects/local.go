package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/store"
)

// LocalStore maps bucket/key onto files under a root directory.
type LocalStore struct {
	root string
}

var _ store.ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates a filesystem object store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local storage root cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Open returns the file at root/bucket/key.
func (l *LocalStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(l.root, bucket, filepath.FromSlash(key))
	if p != l.root && !strings.HasPrefix(p, l.root+string(os.PathSeparator)) {
		return nil, fmt.Errorf("object %s/%s escapes the storage root", bucket, key)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, key, err)
	}
	return f, nil
}
