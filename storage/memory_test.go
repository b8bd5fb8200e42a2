package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("https://cdn.example.com/media/")

	url, err := s.Upload(ctx, "c1/photo.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/c1/photo.png", url)

	obj, ok := s.Get("c1/photo.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(obj.Data))
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, s.Delete(ctx, "c1/photo.png"))
	assert.Zero(t, s.Len())
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "http://h/b/k", PublicURL("http://h/b", "/k"))
	assert.Equal(t, "http://h/b/k", PublicURL("http://h/b/", "k"))
}
