package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"sealdesk/signing-portal/signing-portal-backend/internal/documents"
	fingerprint "sealdesk/signing-portal/signing-portal-backend/pkg/integrity"
	"sealdesk/signing-portal/signing-portal-backend/pkg/metrics"
	"sealdesk/signing-portal/signing-portal-backend/pkg/storage"
)

// ErrSweepInProgress is returned when a sweep is requested while another
// run is still active.
var ErrSweepInProgress = errors.New("integrity: sweep already running")

// RecordSource yields the audit records to verify.
type RecordSource interface {
	List(ctx context.Context) ([]documents.AuditRecord, error)
}

// AlertPublisher receives tamper alerts. Implementations must not block
// the sweep.
type AlertPublisher interface {
	IntegrityAlert(documentID uuid.UUID, variant, expectedHash, actualHash string)
}

// Sweeper re-fingerprints stored documents against their audit records on
// a cron schedule. Detection only: divergences become findings and alerts,
// never repairs.
type Sweeper struct {
	records  RecordSource
	blobs    storage.BlobStore
	findings FindingRepository
	events   AlertPublisher
	logger   *zap.Logger
	cron     *cron.Cron

	mu       sync.Mutex
	sweeping bool
}

func NewSweeper(records RecordSource, blobs storage.BlobStore, findings FindingRepository, events AlertPublisher, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		records:  records,
		blobs:    blobs,
		findings: findings,
		events:   events,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules sweeps with the given cron expression.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil && !errors.Is(err, ErrSweepInProgress) {
			s.logger.Error("Scheduled integrity sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule integrity sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Integrity sweep scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep entry to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Integrity sweep stopped")
}

// RunOnce verifies every audit record against storage. Overlapping runs
// are rejected with ErrSweepInProgress.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepSummary, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	s.sweeping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	summary := &SweepSummary{StartedAt: time.Now().UTC()}

	recs, err := s.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		summary.RecordsChecked++

		summary.VariantsChecked++
		s.verifyVariant(ctx, rec.ID, VariantOriginal, documents.OriginalKey(rec.ID), rec.OriginalHash, summary)

		if rec.Status == documents.StatusSigned && rec.SignedHash != nil {
			summary.VariantsChecked++
			s.verifyVariant(ctx, rec.ID, VariantSigned, documents.SignedKey(rec.ID), *rec.SignedHash, summary)
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	s.logger.Info("Integrity sweep completed",
		zap.Int("records", summary.RecordsChecked),
		zap.Int("variants", summary.VariantsChecked),
		zap.Int("findings", summary.Findings),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

func (s *Sweeper) verifyVariant(ctx context.Context, id uuid.UUID, variant, key, expected string, summary *SweepSummary) {
	actual, reason := s.fingerprintBlob(ctx, key)
	if reason == "" && actual == expected {
		return
	}
	if reason == "" {
		reason = "hash_mismatch"
	}

	detail, _ := json.Marshal(map[string]string{"storage_key": key, "reason": reason})
	finding := &Finding{
		ID:           uuid.New(),
		DocumentID:   id,
		Variant:      variant,
		ExpectedHash: expected,
		ActualHash:   actual,
		Detail:       datatypes.JSON(detail),
		DetectedAt:   time.Now().UTC(),
	}

	if err := s.findings.Create(ctx, finding); err != nil {
		s.logger.Error("Failed to persist integrity finding",
			zap.String("document_id", id.String()),
			zap.String("variant", variant),
			zap.Error(err))
	}

	summary.Findings++
	metrics.IntegrityMismatches.Inc()
	if s.events != nil {
		s.events.IntegrityAlert(id, variant, expected, actual)
	}
	s.logger.Warn("Integrity mismatch detected",
		zap.String("document_id", id.String()),
		zap.String("variant", variant),
		zap.String("expected_hash", expected),
		zap.String("actual_hash", actual),
		zap.String("reason", reason))
}

// fingerprintBlob returns the blob's fingerprint, or a non-empty reason
// when the blob cannot be read.
func (s *Sweeper) fingerprintBlob(ctx context.Context, key string) (hash, reason string) {
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return "", "blob_missing"
		}
		return "", "blob_unreadable"
	}
	defer rc.Close()

	hash, err = fingerprint.FingerprintReader(rc)
	if err != nil {
		return "", "blob_unreadable"
	}
	return hash, ""
}
