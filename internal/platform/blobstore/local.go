package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes documents under a directory. References are the
// slash-separated relative path, e.g. "uploads/1718000000000-1a2b3c4d-scan.pdf".
type LocalStore struct {
	dir string
	now func() time.Time
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, now: time.Now}, nil
}

func (s *LocalStore) Put(ctx context.Context, u Upload) (string, error) {
	if err := checkUpload(u); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := filepath.Join(s.dir, objectKey(u.FileName, s.now()))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(f, io.LimitReader(u.Content, MaxFileSize+1))
	closeErr := f.Close()
	if err == nil && n > MaxFileSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return filepath.ToSlash(name), nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	name := filepath.FromSlash(ref)
	rel, err := filepath.Rel(s.dir, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ErrBlobNotFound
	}
	if err := os.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}
