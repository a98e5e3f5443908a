package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Local keeps blobs on a filesystem rooted at a directory.
type Local struct {
	fs afero.Fs
}

// NewLocal stores blobs under dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return NewFS(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewFS stores blobs on fs.
func NewFS(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

func (l *Local) Put(_ context.Context, key, _ string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(k); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return afero.WriteFile(l.fs, k, data, 0o644)
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(l.fs, k)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(l.fs, k)
}

// Delete removes key. Deleting a missing key is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(k); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
