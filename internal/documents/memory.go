package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is the in-memory audit store backing the "memory" audit
// backend and tests. Records are copied on the way in and out so callers
// never share state with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*AuditRecord
}

// NewMemoryRepository returns an empty in-memory audit store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]*AuditRecord)}
}

func (r *MemoryRepository) Create(ctx context.Context, rec *AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return ErrDuplicateRecord
	}
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedHash string, placement BoundingBox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrAlreadySigned
	}

	hash := signedHash
	box := placement
	rec.Status = StatusSigned
	rec.SignedHash = &hash
	rec.Placement = &box
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]AuditRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, *cloneRecord(rec))
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

func cloneRecord(rec *AuditRecord) *AuditRecord {
	out := *rec
	if rec.SignedHash != nil {
		hash := *rec.SignedHash
		out.SignedHash = &hash
	}
	if rec.Placement != nil {
		box := *rec.Placement
		out.Placement = &box
	}
	return &out
}
