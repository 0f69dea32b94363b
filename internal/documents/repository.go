package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository persists audit records.
type AuditRepository interface {
	Create(ctx context.Context, rec *AuditRecord) error
	Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error)
	MarkSigned(ctx context.Context, id uuid.UUID, signedHash string, placement BoundingBox) error
	List(ctx context.Context) ([]AuditRecord, error)
}

type postgresRepository struct {
	db *gorm.DB
}

// NewRepository returns the Postgres-backed audit repository. The gorm
// handle must be opened with TranslateError so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func NewRepository(db *gorm.DB) AuditRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, rec *AuditRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRecord
		}
		return err
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	var rec AuditRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkSigned transitions a pending record to signed in a single guarded
// update. The status guard in the WHERE clause lets exactly one of two
// racing signers through.
func (r *postgresRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedHash string, placement BoundingBox) error {
	res := r.db.WithContext(ctx).
		Model(&AuditRecord{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(AuditRecord{
			Status:     StatusSigned,
			SignedHash: &signedHash,
			Placement:  &placement,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadySigned
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context) ([]AuditRecord, error) {
	var recs []AuditRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
