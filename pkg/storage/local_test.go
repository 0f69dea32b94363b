package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalStorePutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	err = store.Put(ctx, "documents/abc.pdf", strings.NewReader("%PDF-1.4 test"), "application/pdf")
	assert.NoError(t, err)

	rc, err := store.Get(ctx, "documents/abc.pdf")
	assert.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	assert.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))

	exists, err := store.Exists(ctx, "documents/abc.pdf")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStoreOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, store.Put(ctx, "k", strings.NewReader("first"), "application/octet-stream"))
	assert.NoError(t, store.Put(ctx, "k", strings.NewReader("second"), "application/octet-stream"))

	rc, err := store.Get(ctx, "k")
	assert.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "second", string(data))
}

func TestLocalStoreGetMissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	_, err = store.Get(context.Background(), "documents/missing.pdf")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	exists, err := store.Exists(context.Background(), "documents/missing.pdf")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStoreDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, store.Put(ctx, "documents/doomed.pdf", strings.NewReader("x"), "application/pdf"))
	assert.NoError(t, store.Delete(ctx, "documents/doomed.pdf"))

	exists, err := store.Exists(ctx, "documents/doomed.pdf")
	assert.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, store.Delete(ctx, "documents/doomed.pdf"), ErrKeyNotFound)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.Put(ctx, "../escape", strings.NewReader("x"), "application/octet-stream"))
	assert.Error(t, store.Put(ctx, "/abs/path", strings.NewReader("x"), "application/octet-stream"))

	_, err = store.Get(ctx, "..")
	assert.Error(t, err)
}
