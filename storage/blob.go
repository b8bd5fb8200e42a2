// Package storage uploads message attachments to object storage.
package storage

import (
	"context"
	"io"
	"strings"
)

// BlobStore stores attachment bytes and hands back a URL clients can fetch.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// PublicURL joins a public base URL and an object key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
