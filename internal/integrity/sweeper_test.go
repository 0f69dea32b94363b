package integrity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"sealdesk/signing-portal/signing-portal-backend/internal/documents"
	fingerprint "sealdesk/signing-portal/signing-portal-backend/pkg/integrity"
	"sealdesk/signing-portal/signing-portal-backend/pkg/storage"
)

type capturedAlert struct {
	documentID uuid.UUID
	variant    string
}

type recordingAlerts struct {
	alerts []capturedAlert
}

func (r *recordingAlerts) IntegrityAlert(documentID uuid.UUID, variant, expectedHash, actualHash string) {
	r.alerts = append(r.alerts, capturedAlert{documentID: documentID, variant: variant})
}

type sweepEnv struct {
	sweeper  *Sweeper
	records  *documents.MemoryRepository
	blobs    storage.BlobStore
	findings *MemoryRepository
	alerts   *recordingAlerts
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()

	blobs, err := storage.NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	records := documents.NewMemoryRepository()
	findings := NewMemoryRepository()
	alerts := &recordingAlerts{}
	sweeper := NewSweeper(records, blobs, findings, alerts, zap.NewNop())

	return &sweepEnv{sweeper: sweeper, records: records, blobs: blobs, findings: findings, alerts: alerts}
}

func seedDocument(t *testing.T, env *sweepEnv, content string) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	id := uuid.New()
	assert.NoError(t, env.blobs.Put(ctx, documents.OriginalKey(id), strings.NewReader(content), "application/pdf"))
	assert.NoError(t, env.records.Create(ctx, &documents.AuditRecord{
		ID:           id,
		OriginalHash: fingerprint.Fingerprint([]byte(content)),
		Status:       documents.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}))
	return id
}

func TestSweepCleanStore(t *testing.T) {
	env := newSweepEnv(t)
	seedDocument(t, env, "%PDF-1.7 intact")

	summary, err := env.sweeper.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.RecordsChecked)
	assert.Equal(t, 1, summary.VariantsChecked)
	assert.Equal(t, 0, summary.Findings)
	assert.Empty(t, env.alerts.alerts)
}

func TestSweepDetectsTamperedBlob(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()
	id := seedDocument(t, env, "%PDF-1.7 intact")

	// Overwrite the stored bytes behind the audit record's back.
	tampered := "%PDF-1.7 tampered"
	assert.NoError(t, env.blobs.Put(ctx, documents.OriginalKey(id), strings.NewReader(tampered), "application/pdf"))

	summary, err := env.sweeper.RunOnce(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Findings)

	findings, err := env.findings.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, id, findings[0].DocumentID)
	assert.Equal(t, VariantOriginal, findings[0].Variant)
	assert.Equal(t, fingerprint.Fingerprint([]byte(tampered)), findings[0].ActualHash)
	assert.NotEqual(t, findings[0].ExpectedHash, findings[0].ActualHash)
	assert.Contains(t, string(findings[0].Detail), "hash_mismatch")

	assert.Equal(t, []capturedAlert{{documentID: id, variant: VariantOriginal}}, env.alerts.alerts)
}

func TestSweepDetectsMissingBlob(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()
	id := seedDocument(t, env, "%PDF-1.7 intact")

	assert.NoError(t, env.blobs.Delete(ctx, documents.OriginalKey(id)))

	summary, err := env.sweeper.RunOnce(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Findings)

	findings, _ := env.findings.List(ctx)
	assert.Len(t, findings, 1)
	assert.Empty(t, findings[0].ActualHash)
	assert.Contains(t, string(findings[0].Detail), "blob_missing")
}

func TestSweepChecksSignedVariant(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()
	id := seedDocument(t, env, "%PDF-1.7 intact")

	signed := "%PDF-1.7 intact+signature"
	assert.NoError(t, env.blobs.Put(ctx, documents.SignedKey(id), strings.NewReader(signed), "application/pdf"))
	assert.NoError(t, env.records.MarkSigned(ctx, id, fingerprint.Fingerprint([]byte(signed)), documents.BoundingBox{Width: 10, Height: 10}))

	summary, err := env.sweeper.RunOnce(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.RecordsChecked)
	assert.Equal(t, 2, summary.VariantsChecked)
	assert.Equal(t, 0, summary.Findings)
}

func TestSweepRejectsOverlappingRuns(t *testing.T) {
	env := newSweepEnv(t)

	env.sweeper.mu.Lock()
	env.sweeper.sweeping = true
	env.sweeper.mu.Unlock()

	_, err := env.sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	env.sweeper.mu.Lock()
	env.sweeper.sweeping = false
	env.sweeper.mu.Unlock()

	_, err = env.sweeper.RunOnce(context.Background())
	assert.NoError(t, err)
}
