package documents

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"sealdesk/signing-portal/signing-portal-backend/pkg/geometry"
	"sealdesk/signing-portal/signing-portal-backend/pkg/imaging"
	"sealdesk/signing-portal/signing-portal-backend/pkg/integrity"
	"sealdesk/signing-portal/signing-portal-backend/pkg/storage"
)

// MockRepository is a mock implementation of the AuditRepository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, rec *AuditRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AuditRecord), args.Error(1)
}

func (m *MockRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedHash string, placement BoundingBox) error {
	args := m.Called(ctx, id, signedHash, placement)
	return args.Error(0)
}

func (m *MockRepository) List(ctx context.Context) ([]AuditRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]AuditRecord), args.Error(1)
}

// stubStamper is a deterministic pdf.Stamper: every image is 200x100
// pixels and stamping appends a marker to the document bytes.
type stubStamper struct {
	pages    int
	stampErr error
	lastPage int
	lastRect geometry.Rect
}

func (s *stubStamper) ImageDimensions(img []byte) (int, int, error) {
	if len(img) == 0 {
		return 0, 0, fmt.Errorf("empty image")
	}
	return 200, 100, nil
}

func (s *stubStamper) PageCount(ctx context.Context, doc []byte) (int, error) {
	return s.pages, nil
}

func (s *stubStamper) StampImage(ctx context.Context, doc, img []byte, format imaging.Format, page int, rect geometry.Rect) ([]byte, error) {
	if s.stampErr != nil {
		return nil, s.stampErr
	}
	s.lastPage = page
	s.lastRect = rect
	out := append([]byte{}, doc...)
	return append(out, []byte("+signature")...), nil
}

type recordingEvents struct {
	uploaded []uuid.UUID
	signed   []uuid.UUID
}

func (e *recordingEvents) DocumentUploaded(id uuid.UUID, originalHash string) {
	e.uploaded = append(e.uploaded, id)
}

func (e *recordingEvents) DocumentSigned(id uuid.UUID, signedHash string) {
	e.signed = append(e.signed, id)
}

type testEnv struct {
	service Service
	repo    *MemoryRepository
	blobs   storage.BlobStore
	stamper *stubStamper
	events  *recordingEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	blobs, err := storage.NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	repo := NewMemoryRepository()
	stamper := &stubStamper{pages: 2}
	events := &recordingEvents{}
	service := NewService(repo, NewStorageProvider(blobs), NewStampService(stamper), events, zap.NewNop(), 1<<20)

	return &testEnv{service: service, repo: repo, blobs: blobs, stamper: stamper, events: events}
}

func pngPayload() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("signature image bytes"))
}

func uploadFixture(t *testing.T, env *testEnv) (*UploadResult, []byte) {
	t.Helper()

	data := []byte("%PDF-1.7 fixture document")
	result, err := env.service.UploadDocument(context.Background(), UploadRequest{
		FileName: "contract.pdf",
		Size:     int64(len(data)),
		Content:  strings.NewReader(string(data)),
	})
	assert.NoError(t, err)
	return result, data
}

func TestUploadDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, data := uploadFixture(t, env)

	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.Equal(t, integrity.Fingerprint(data), result.OriginalHash)
	assert.Equal(t, StatusPending, result.Status)

	rec, err := env.repo.Get(ctx, result.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, result.OriginalHash, rec.OriginalHash)
	assert.Nil(t, rec.SignedHash)
	assert.Nil(t, rec.Placement)
	assert.False(t, rec.CreatedAt.IsZero())

	rc, err := env.blobs.Get(ctx, OriginalKey(result.ID))
	assert.NoError(t, err)
	stored, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, data, stored)

	assert.Equal(t, []uuid.UUID{result.ID}, env.events.uploaded)
}

func TestUploadDocumentRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.UploadDocument(context.Background(), UploadRequest{
		FileName: "notes.txt",
		Size:     5,
		Content:  strings.NewReader("hello"),
	})

	assert.ErrorIs(t, err, ErrInvalidRequest)

	recs, _ := env.repo.List(context.Background())
	assert.Empty(t, recs)
}

func TestUploadDocumentRejectsOversize(t *testing.T) {
	blobs, err := storage.NewLocalStore(t.TempDir())
	assert.NoError(t, err)
	service := NewService(NewMemoryRepository(), NewStorageProvider(blobs), NewStampService(&stubStamper{pages: 1}), nil, zap.NewNop(), 10)

	_, err = service.UploadDocument(context.Background(), UploadRequest{
		FileName: "big.pdf",
		Size:     100,
		Content:  strings.NewReader("%PDF-1.7 far too many bytes"),
	})

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUploadDocumentCleansBlobWhenAuditCreateFails(t *testing.T) {
	blobs, err := storage.NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	mockRepo := new(MockRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*documents.AuditRecord")).Return(errors.New("db down"))

	service := NewService(mockRepo, NewStorageProvider(blobs), NewStampService(&stubStamper{pages: 1}), nil, zap.NewNop(), 1<<20)

	_, err = service.UploadDocument(context.Background(), UploadRequest{
		FileName: "contract.pdf",
		Size:     20,
		Content:  strings.NewReader("%PDF-1.7 fixture"),
	})

	assert.Error(t, err)
	mockRepo.AssertExpectations(t)

	// The stored blob must not outlive the failed audit record.
	rec := mockRepo.Calls[0].Arguments.Get(1).(*AuditRecord)
	exists, err := blobs.Exists(context.Background(), OriginalKey(rec.ID))
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestSignDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, data := uploadFixture(t, env)

	box := BoundingBox{X: 10, Y: 10, Width: 100, Height: 100}
	signResult, err := env.service.SignDocument(ctx, result.ID, SignRequest{
		SignatureImage: pngPayload(),
		Page:           1,
		Box:            box,
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSigned, signResult.Status)
	assert.Equal(t, box, signResult.Placement)
	assert.Equal(t, SignedKey(result.ID), signResult.SignedKey)

	stamped := append(append([]byte{}, data...), []byte("+signature")...)
	assert.Equal(t, integrity.Fingerprint(stamped), signResult.SignedHash)

	// A 200x100 image into a 100x100 box binds to the width and floats to
	// the vertical center.
	assert.Equal(t, geometry.Rect{X: 10, Y: 35, Width: 100, Height: 50}, env.stamper.lastRect)
	assert.Equal(t, 1, env.stamper.lastPage)

	rec, err := env.repo.Get(ctx, result.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusSigned, rec.Status)
	assert.Equal(t, result.OriginalHash, rec.OriginalHash)
	if assert.NotNil(t, rec.SignedHash) {
		assert.Equal(t, signResult.SignedHash, *rec.SignedHash)
	}
	if assert.NotNil(t, rec.Placement) {
		assert.Equal(t, box, *rec.Placement)
	}

	rc, err := env.blobs.Get(ctx, SignedKey(result.ID))
	assert.NoError(t, err)
	storedSigned, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, signResult.SignedHash, integrity.Fingerprint(storedSigned))

	assert.Equal(t, []uuid.UUID{result.ID}, env.events.signed)
}

func TestSignDocumentTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, _ := uploadFixture(t, env)

	req := SignRequest{SignatureImage: pngPayload(), Page: 1, Box: BoundingBox{X: 0, Y: 0, Width: 200, Height: 100}}

	_, err := env.service.SignDocument(ctx, result.ID, req)
	assert.NoError(t, err)

	_, err = env.service.SignDocument(ctx, result.ID, req)
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestSignDocumentUnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.SignDocument(context.Background(), uuid.New(), SignRequest{
		SignatureImage: pngPayload(),
		Page:           1,
		Box:            BoundingBox{Width: 100, Height: 100},
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignDocumentStampFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, _ := uploadFixture(t, env)

	req := SignRequest{SignatureImage: pngPayload(), Page: 1, Box: BoundingBox{Width: 100, Height: 100}}

	env.stamper.stampErr = errors.New("engine exploded")
	_, err := env.service.SignDocument(ctx, result.ID, req)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)

	rec, err := env.repo.Get(ctx, result.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, rec.SignedHash)

	exists, err := env.blobs.Exists(ctx, SignedKey(result.ID))
	assert.NoError(t, err)
	assert.False(t, exists)

	env.stamper.stampErr = nil
	signResult, err := env.service.SignDocument(ctx, result.ID, req)
	assert.NoError(t, err)
	assert.Equal(t, StatusSigned, signResult.Status)
}

func TestSignDocumentMalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, _ := uploadFixture(t, env)

	_, err := env.service.SignDocument(ctx, result.ID, SignRequest{
		SignatureImage: "just some text",
		Page:           1,
		Box:            BoundingBox{Width: 100, Height: 100},
	})

	assert.ErrorIs(t, err, ErrInvalidRequest)

	rec, _ := env.repo.Get(ctx, result.ID)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestSignDocumentPageOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	result, _ := uploadFixture(t, env)

	_, err := env.service.SignDocument(context.Background(), result.ID, SignRequest{
		SignatureImage: pngPayload(),
		Page:           5,
		Box:            BoundingBox{Width: 100, Height: 100},
	})

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSignDocumentRejectsDegenerateBox(t *testing.T) {
	env := newTestEnv(t)
	result, _ := uploadFixture(t, env)

	_, err := env.service.SignDocument(context.Background(), result.ID, SignRequest{
		SignatureImage: pngPayload(),
		Page:           1,
		Box:            BoundingBox{Width: 0, Height: 100},
	})

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOpenDocumentSignedVariantBeforeSigning(t *testing.T) {
	env := newTestEnv(t)
	result, _ := uploadFixture(t, env)

	_, err := env.service.OpenDocument(context.Background(), result.ID, VariantSigned)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDocumentOriginal(t *testing.T) {
	env := newTestEnv(t)
	result, data := uploadFixture(t, env)

	rc, err := env.service.OpenDocument(context.Background(), result.ID, VariantOriginal)
	assert.NoError(t, err)
	got, _ := io.ReadAll(rc)
	rc.Close()

	assert.Equal(t, data, got)
}

func TestBuildCertificate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, _ := uploadFixture(t, env)

	cert, err := env.service.BuildCertificate(ctx, result.ID)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(cert), "%PDF"))

	_, err = env.service.SignDocument(ctx, result.ID, SignRequest{
		SignatureImage: pngPayload(),
		Page:           1,
		Box:            BoundingBox{Width: 200, Height: 100},
	})
	assert.NoError(t, err)

	cert, err = env.service.BuildCertificate(ctx, result.ID)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(cert), "%PDF"))
}

func TestExportAuditTrailCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, _ := uploadFixture(t, env)

	data, contentType, err := env.service.ExportAuditTrail(ctx, ExportFormatCSV)

	assert.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), result.ID.String())
	assert.Contains(t, string(data), result.OriginalHash)
}

func TestExportAuditTrailUnknownFormat(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.service.ExportAuditTrail(context.Background(), ExportFormat("pdf"))

	assert.ErrorIs(t, err, ErrInvalidRequest)
}
