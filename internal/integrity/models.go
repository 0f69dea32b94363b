package integrity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Variant names for the stored renditions a finding can refer to.
const (
	VariantOriginal = "original"
	VariantSigned   = "signed"
)

// Finding records one detected divergence between an audit record and the
// bytes actually in storage. Findings only accumulate; the sweep never
// touches audit records or blobs.
type Finding struct {
	ID           uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	DocumentID   uuid.UUID      `json:"document_id" gorm:"type:uuid;index"`
	Variant      string         `json:"variant" gorm:"not null"`
	ExpectedHash string         `json:"expected_hash" gorm:"not null"`
	ActualHash   string         `json:"actual_hash"`
	Detail       datatypes.JSON `json:"detail,omitempty" gorm:"type:jsonb"`
	DetectedAt   time.Time      `json:"detected_at"`
}

func (Finding) TableName() string {
	return "integrity_findings"
}

// SweepSummary reports one sweep run.
type SweepSummary struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	RecordsChecked  int           `json:"records_checked"`
	VariantsChecked int           `json:"variants_checked"`
	Findings        int           `json:"findings"`
}
