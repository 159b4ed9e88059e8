package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"axis-blue-backend/internal/photostore"
)

func TestStore_SaveAndGet(t *testing.T) {
	store, err := New(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	imageData := []byte("fake png data")

	key, err := store.Save(ctx, "visit-1", "image/png", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "visit-1_"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "image/png", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestStore_SanitizesPrefix(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	key, err := store.Save(context.Background(), "../../etc", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "etc_"))

	key, err = store.Save(context.Background(), "///", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "capture_"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}

func TestStore_Delete(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	key, err := store.Save(ctx, "v", "image/jpeg", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Get(ctx, key)
	assert.True(t, errors.Is(err, photostore.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, key), photostore.ErrNotFound))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStore_SaveFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "v", "image/jpeg", failingReader{})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PathTraversal(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, photostore.ErrNotFound))
}
