package documents

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"sealdesk/signing-portal/signing-portal-backend/pkg/storage"
)

// StorageProvider adapts the blob store to the document key scheme.
// Originals live at documents/<id>.pdf; the signed rendition's key is
// derived from the original's so the pair always travels together.
type StorageProvider struct {
	store storage.BlobStore
}

func NewStorageProvider(store storage.BlobStore) *StorageProvider {
	return &StorageProvider{store: store}
}

// OriginalKey returns the storage key for a document's uploaded bytes.
func OriginalKey(id uuid.UUID) string {
	return fmt.Sprintf("documents/%s.pdf", id)
}

// SignedKeyFrom derives the signed rendition's key by inserting "_signed"
// before the original key's extension.
func SignedKeyFrom(originalKey string) string {
	ext := path.Ext(originalKey)
	return strings.TrimSuffix(originalKey, ext) + "_signed" + ext
}

// SignedKey returns the storage key for a document's signed rendition.
func SignedKey(id uuid.UUID) string {
	return SignedKeyFrom(OriginalKey(id))
}

func (p *StorageProvider) StoreOriginal(ctx context.Context, id uuid.UUID, body io.Reader) error {
	return p.store.Put(ctx, OriginalKey(id), body, "application/pdf")
}

func (p *StorageProvider) StoreSigned(ctx context.Context, id uuid.UUID, body io.Reader) error {
	return p.store.Put(ctx, SignedKey(id), body, "application/pdf")
}

func (p *StorageProvider) OpenOriginal(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	return p.store.Get(ctx, OriginalKey(id))
}

func (p *StorageProvider) OpenSigned(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	return p.store.Get(ctx, SignedKey(id))
}

func (p *StorageProvider) DeleteOriginal(ctx context.Context, id uuid.UUID) error {
	return p.store.Delete(ctx, OriginalKey(id))
}
