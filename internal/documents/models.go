package documents

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// AuditStatus tracks where a document sits in the signing lifecycle.
type AuditStatus string

const (
	StatusPending AuditStatus = "pending"
	StatusSigned  AuditStatus = "signed"
)

// DocumentVariant selects which stored rendition of a document to read.
type DocumentVariant string

const (
	VariantOriginal DocumentVariant = "original"
	VariantSigned   DocumentVariant = "signed"
)

// ExportFormat selects the audit trail export encoding.
type ExportFormat string

const (
	ExportFormatExcel ExportFormat = "xlsx"
	ExportFormatCSV   ExportFormat = "csv"
)

// BoundingBox is the caller-requested placement area in page points,
// measured from the lower-left corner of the page.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AuditRecord is the tamper-evidence record kept per uploaded document.
// SignedHash and Placement are set together by the signed transition and
// stay nil while the record is pending. CreatedAt marks upload time and is
// never touched again.
type AuditRecord struct {
	ID           uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	OriginalHash string       `json:"original_hash" gorm:"not null"`
	SignedHash   *string      `json:"signed_hash,omitempty"`
	Placement    *BoundingBox `json:"placement,omitempty" gorm:"serializer:json;type:jsonb"`
	Status       AuditStatus  `json:"status" gorm:"not null;index"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

// UploadRequest carries an incoming document upload.
type UploadRequest struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// UploadResult reports a stored upload.
type UploadResult struct {
	ID           uuid.UUID   `json:"id"`
	OriginalHash string      `json:"original_hash"`
	Status       AuditStatus `json:"status"`
}

// SignRequest places a signature image on one page of a document. The
// image payload is a base64 data URI.
type SignRequest struct {
	SignatureImage string      `json:"signature_image" binding:"required"`
	Page           int         `json:"page"`
	Box            BoundingBox `json:"box"`
}

// SignResult reports a completed signing.
type SignResult struct {
	ID         uuid.UUID   `json:"id"`
	Status     AuditStatus `json:"status"`
	SignedHash string      `json:"signed_hash"`
	Placement  BoundingBox `json:"placement"`
	SignedKey  string      `json:"signed_key"`
}
