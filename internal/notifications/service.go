package notifications

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster fans an event out to connected subscribers without blocking.
type Broadcaster interface {
	Broadcast(event Event) error
}

// Service publishes document lifecycle events. Delivery is best effort:
// publishing never fails the operation that triggered it.
type Service struct {
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewService(broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{broadcaster: broadcaster, logger: logger}
}

// Publish fans out one event. Failures are logged and swallowed.
func (s *Service) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(event); err != nil {
			s.logger.Warn("Dropped notification",
				zap.String("type", string(event.Type)),
				zap.Error(err))
			return
		}
	}

	s.logger.Debug("Published notification",
		zap.String("type", string(event.Type)),
		zap.String("document_id", event.DocumentID))
}

func (s *Service) DocumentUploaded(id uuid.UUID, originalHash string) {
	s.Publish(Event{
		Type:       EventDocumentUploaded,
		DocumentID: id.String(),
		Data:       map[string]string{"original_hash": originalHash},
	})
}

func (s *Service) DocumentSigned(id uuid.UUID, signedHash string) {
	s.Publish(Event{
		Type:       EventDocumentSigned,
		DocumentID: id.String(),
		Data:       map[string]string{"signed_hash": signedHash},
	})
}

func (s *Service) IntegrityAlert(id uuid.UUID, variant, expectedHash, actualHash string) {
	s.Publish(Event{
		Type:       EventIntegrityAlert,
		DocumentID: id.String(),
		Data: map[string]string{
			"variant":       variant,
			"expected_hash": expectedHash,
			"actual_hash":   actualHash,
		},
	})
}
