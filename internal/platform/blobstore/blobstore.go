// Package blobstore stores claim documents. It defines the DocumentStore
// contract with local disk, S3 and in-memory backends, and validates the
// multipart files a request carries before anything is written.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

const (
	// MaxFileSize is the per-file limit (5 MB).
	MaxFileSize = 5 << 20
	// MaxFiles is the per-request limit.
	MaxFiles = 10
	// FormField is the multipart field that carries claim documents.
	FormField = "documents"
)

// AllowedContentTypes lists the accepted document MIME types.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// Upload is one validated document ready to be stored.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// DocumentStore persists documents and returns an opaque reference that is
// recorded on the claim.
type DocumentStore interface {
	Put(ctx context.Context, u Upload) (string, error)
	Delete(ctx context.Context, ref string) error
}

func checkUpload(u Upload) error {
	if u.FileName == "" {
		return ErrMissingFileName
	}
	if !AllowedContentTypes[u.ContentType] {
		return ErrInvalidContentType
	}
	if u.Size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// objectKey names a stored document "<unix millis>-<short id>-<base name>".
func objectKey(fileName string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], base)
}

// readLimited reads at most MaxFileSize bytes and fails if r holds more.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// SaveAll stores every upload in order. On failure the documents already
// written are removed and the error is returned.
func SaveAll(ctx context.Context, store DocumentStore, uploads []Upload) ([]string, error) {
	refs := make([]string, 0, len(uploads))
	for _, u := range uploads {
		ref, err := store.Put(ctx, u)
		if err != nil {
			Cleanup(ctx, store, refs)
			return nil, fmt.Errorf("store %s: %w", u.FileName, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Cleanup deletes refs, ignoring individual failures.
func Cleanup(ctx context.Context, store DocumentStore, refs []string) {
	for _, ref := range refs {
		_ = store.Delete(ctx, ref)
	}
}
