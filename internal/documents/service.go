package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sealdesk/signing-portal/signing-portal-backend/internal/documents/export"
	"sealdesk/signing-portal/signing-portal-backend/pkg/integrity"
	"sealdesk/signing-portal/signing-portal-backend/pkg/metrics"
)

// pdfMagic prefixes every document this service accepts.
var pdfMagic = []byte("%PDF-")

// auditColumns is the column order for audit trail exports.
var auditColumns = []string{"id", "status", "original_hash", "signed_hash", "placement", "created_at"}

// EventPublisher receives lifecycle notifications. Implementations must
// not block the signing pipeline.
type EventPublisher interface {
	DocumentUploaded(id uuid.UUID, originalHash string)
	DocumentSigned(id uuid.UUID, signedHash string)
}

type Service interface {
	UploadDocument(ctx context.Context, req UploadRequest) (*UploadResult, error)
	SignDocument(ctx context.Context, id uuid.UUID, req SignRequest) (*SignResult, error)
	GetAudit(ctx context.Context, id uuid.UUID) (*AuditRecord, error)
	ListAudit(ctx context.Context) ([]AuditRecord, error)
	OpenDocument(ctx context.Context, id uuid.UUID, variant DocumentVariant) (io.ReadCloser, error)
	BuildCertificate(ctx context.Context, id uuid.UUID) ([]byte, error)
	ExportAuditTrail(ctx context.Context, format ExportFormat) ([]byte, string, error)
}

type signingService struct {
	repo           AuditRepository
	storage        *StorageProvider
	stamps         *StampService
	events         EventPublisher
	logger         *zap.Logger
	maxUploadBytes int64
}

func NewService(repo AuditRepository, storage *StorageProvider, stamps *StampService, events EventPublisher, logger *zap.Logger, maxUploadBytes int64) Service {
	return &signingService{
		repo:           repo,
		storage:        storage,
		stamps:         stamps,
		events:         events,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadDocument stores the uploaded bytes and opens a pending audit
// record carrying their fingerprint.
func (s *signingService) UploadDocument(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Content == nil {
		return nil, fmt.Errorf("%w: missing file content", ErrInvalidRequest)
	}
	if s.maxUploadBytes > 0 && req.Size > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", ErrInvalidRequest, s.maxUploadBytes)
	}

	reader := req.Content
	if s.maxUploadBytes > 0 {
		reader = io.LimitReader(reader, s.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", ErrInvalidRequest, s.maxUploadBytes)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: upload is not a PDF", ErrInvalidRequest)
	}

	id := uuid.New()
	originalHash := integrity.Fingerprint(data)

	if err := s.storage.StoreOriginal(ctx, id, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	rec := &AuditRecord{
		ID:           id,
		OriginalHash: originalHash,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if delErr := s.storage.DeleteOriginal(ctx, id); delErr != nil {
			s.logger.Warn("Orphaned blob after failed audit create",
				zap.String("document_id", id.String()),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("create audit record: %w", err)
	}

	metrics.DocumentsUploaded.Inc()
	if s.events != nil {
		s.events.DocumentUploaded(id, originalHash)
	}
	s.logger.Info("Document uploaded",
		zap.String("document_id", id.String()),
		zap.String("original_hash", originalHash),
		zap.Int("size_bytes", len(data)),
		zap.String("file_name", req.FileName))

	return &UploadResult{ID: id, OriginalHash: originalHash, Status: StatusPending}, nil
}

// SignDocument runs the signing pipeline: load, stamp, store, then flip
// the audit record. The audit transition goes last so any earlier failure
// leaves the record pending and the request retryable.
func (s *signingService) SignDocument(ctx context.Context, id uuid.UUID, req SignRequest) (*SignResult, error) {
	if req.SignatureImage == "" {
		metrics.SigningFailures.WithLabelValues("validate").Inc()
		return nil, fmt.Errorf("%w: missing signature image", ErrInvalidRequest)
	}
	if req.Page < 1 {
		metrics.SigningFailures.WithLabelValues("validate").Inc()
		return nil, fmt.Errorf("%w: page must be positive", ErrInvalidRequest)
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusSigned {
		metrics.SigningFailures.WithLabelValues("validate").Inc()
		return nil, ErrAlreadySigned
	}

	original, err := s.storage.OpenOriginal(ctx, id)
	if err != nil {
		metrics.SigningFailures.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("load document: %w", err)
	}
	data, err := io.ReadAll(original)
	original.Close()
	if err != nil {
		metrics.SigningFailures.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("read document: %w", err)
	}

	stamped, err := s.stamps.ApplySignature(ctx, data, req.SignatureImage, req.Page, req.Box)
	if err != nil {
		metrics.SigningFailures.WithLabelValues("stamp").Inc()
		return nil, err
	}

	signedHash := integrity.Fingerprint(stamped)

	if err := s.storage.StoreSigned(ctx, id, bytes.NewReader(stamped)); err != nil {
		metrics.SigningFailures.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("store signed document: %w", err)
	}

	if err := s.repo.MarkSigned(ctx, id, signedHash, req.Box); err != nil {
		metrics.SigningFailures.WithLabelValues("audit").Inc()
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadySigned) {
			return nil, err
		}
		return nil, fmt.Errorf("mark signed: %w", err)
	}

	metrics.DocumentsSigned.Inc()
	if s.events != nil {
		s.events.DocumentSigned(id, signedHash)
	}
	s.logger.Info("Document signed",
		zap.String("document_id", id.String()),
		zap.String("signed_hash", signedHash),
		zap.Int("page", req.Page))

	return &SignResult{
		ID:         id,
		Status:     StatusSigned,
		SignedHash: signedHash,
		Placement:  req.Box,
		SignedKey:  SignedKey(id),
	}, nil
}

func (s *signingService) GetAudit(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *signingService) ListAudit(ctx context.Context) ([]AuditRecord, error) {
	return s.repo.List(ctx)
}

// OpenDocument streams a stored rendition. The signed variant only exists
// once the record reports signed; asking earlier is a not-found, not an
// error in storage.
func (s *signingService) OpenDocument(ctx context.Context, id uuid.UUID, variant DocumentVariant) (io.ReadCloser, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch variant {
	case VariantOriginal, "":
		rc, err := s.storage.OpenOriginal(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open document: %w", err)
		}
		return rc, nil
	case VariantSigned:
		if rec.Status != StatusSigned {
			return nil, fmt.Errorf("%w: no signed rendition yet", ErrNotFound)
		}
		rc, err := s.storage.OpenSigned(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open signed document: %w", err)
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidRequest, variant)
	}
}

func (s *signingService) BuildCertificate(ctx context.Context, id uuid.UUID) ([]byte, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data := export.CertificateData{
		DocumentID:   rec.ID.String(),
		Status:       string(rec.Status),
		OriginalHash: rec.OriginalHash,
		RecordedAt:   rec.CreatedAt,
	}
	if rec.SignedHash != nil {
		data.SignedHash = *rec.SignedHash
	}
	if rec.Placement != nil {
		data.Placement = formatPlacement(*rec.Placement)
	}

	cert, err := export.BuildCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("build certificate: %w", err)
	}
	return cert, nil
}

// ExportAuditTrail renders every audit record into the requested format
// and returns the bytes with their content type.
func (s *signingService) ExportAuditTrail(ctx context.Context, format ExportFormat) ([]byte, string, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list audit records: %w", err)
	}

	rows := make([]map[string]interface{}, 0, len(recs))
	for _, rec := range recs {
		row := map[string]interface{}{
			"id":            rec.ID.String(),
			"status":        string(rec.Status),
			"original_hash": rec.OriginalHash,
			"signed_hash":   "",
			"placement":     "",
			"created_at":    rec.CreatedAt,
		}
		if rec.SignedHash != nil {
			row["signed_hash"] = *rec.SignedHash
		}
		if rec.Placement != nil {
			row["placement"] = formatPlacement(*rec.Placement)
		}
		rows = append(rows, row)
	}

	switch format {
	case ExportFormatCSV:
		data, err := export.WriteCSV(auditColumns, rows)
		if err != nil {
			return nil, "", fmt.Errorf("export audit trail: %w", err)
		}
		return data, "text/csv", nil
	case ExportFormatExcel, "":
		data, err := export.WriteWorkbook("Audit Trail", auditColumns, rows)
		if err != nil {
			return nil, "", fmt.Errorf("export audit trail: %w", err)
		}
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported export format %q", ErrInvalidRequest, format)
	}
}

func formatPlacement(box BoundingBox) string {
	return fmt.Sprintf("x=%.2f y=%.2f w=%.2f h=%.2f (page points)", box.X, box.Y, box.Width, box.Height)
}
