package notifications

import "time"

// EventType labels the lifecycle events the portal emits.
type EventType string

const (
	EventDocumentUploaded EventType = "document.uploaded"
	EventDocumentSigned   EventType = "document.signed"
	EventIntegrityAlert   EventType = "integrity.alert"
)

// Event is the wire format pushed to websocket subscribers.
type Event struct {
	Type       EventType         `json:"type"`
	DocumentID string            `json:"document_id"`
	Data       map[string]string `json:"data,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
