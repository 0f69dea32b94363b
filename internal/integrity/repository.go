package integrity

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// FindingRepository persists integrity findings.
type FindingRepository interface {
	Create(ctx context.Context, finding *Finding) error
	List(ctx context.Context) ([]Finding, error)
}

type postgresRepository struct {
	db *gorm.DB
}

// NewRepository returns the Postgres-backed finding repository.
func NewRepository(db *gorm.DB) FindingRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, finding *Finding) error {
	return r.db.WithContext(ctx).Create(finding).Error
}

func (r *postgresRepository) List(ctx context.Context) ([]Finding, error) {
	var findings []Finding
	if err := r.db.WithContext(ctx).Order("detected_at DESC").Find(&findings).Error; err != nil {
		return nil, err
	}
	return findings, nil
}

// MemoryRepository keeps findings in memory for the non-Postgres audit
// backends and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	findings []Finding
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, finding *Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, *finding)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]Finding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out, nil
}
