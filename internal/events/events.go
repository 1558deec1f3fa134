// Package events publishes notifications about processed documents to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bookevents "github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrSubjectRequired is returned when a publisher is built without a subject.
var ErrSubjectRequired = errors.New("processed subject is required")

// Operation names used in events and metrics labels.
const (
	OperationConvert  = "convert"
	OperationMetadata = "metadata"
	OperationProtect  = "protect"
)

// Status values carried by DocumentProcessedEvent.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DocumentProcessedEvent is emitted once per handled request.
type DocumentProcessedEvent struct {
	Header    bookevents.EventHeader `json:"header"`
	Operation string                 `json:"operation"`
	FileName  string                 `json:"fileName"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	SizeBytes int64                  `json:"sizeBytes"`
}

// NewDocumentProcessedEvent builds an event with a fresh header. The request scope
// prefix doubles as the workflow ID so events can be matched with log lines.
func NewDocumentProcessedEvent(
	workflowID, operation, fileName string,
	sizeBytes int64,
	opErr error,
) DocumentProcessedEvent {
	event := DocumentProcessedEvent{
		Header: bookevents.EventHeader{
			WorkflowID: workflowID,
			UserID:     "",
			TenantID:   "",
			EventID:    uuid.New().String(),
			Timestamp:  time.Now().UTC(),
		},
		Operation: operation,
		FileName:  fileName,
		Status:    StatusSucceeded,
		Error:     "",
		SizeBytes: sizeBytes,
	}

	if opErr != nil {
		event.Status = StatusFailed
		event.Error = opErr.Error()
	}

	return event
}

// Publisher delivers processed-document events.
type Publisher interface {
	Publish(ctx context.Context, event DocumentProcessedEvent) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, DocumentProcessedEvent) error { return nil }

// JetStreamPublisher publishes events to a JetStream subject.
type JetStreamPublisher struct {
	jetStream jetstream.JetStream
	subject   string
}

// NewJetStreamPublisher wraps an existing JetStream context.
func NewJetStreamPublisher(jetStream jetstream.JetStream, subject string) (*JetStreamPublisher, error) {
	if subject == "" {
		return nil, ErrSubjectRequired
	}

	return &JetStreamPublisher{jetStream: jetStream, subject: subject}, nil
}

// Publish marshals and publishes a DocumentProcessedEvent.
func (p *JetStreamPublisher) Publish(ctx context.Context, event DocumentProcessedEvent) error {
	eventJSON, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal DocumentProcessedEvent: %w", marshalErr)
	}

	_, pubErr := p.jetStream.Publish(ctx, p.subject, eventJSON)
	if pubErr != nil {
		return fmt.Errorf("failed to publish DocumentProcessedEvent: %w", pubErr)
	}

	return nil
}

// Connect dials NATS, ensures the stream exists and returns a publisher. The returned
// close function drains nothing and only closes the connection.
func Connect(ctx context.Context, url, streamName, subject string) (*JetStreamPublisher, func(), error) {
	natsConnection, connErr := nats.Connect(url)
	if connErr != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", connErr)
	}

	jetStream, jsErr := jetstream.New(natsConnection)
	if jsErr != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	_, streamErr := jetStream.CreateStream(ctx, NewStreamConfig(streamName, subject))
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create stream %s: %w", streamName, streamErr)
	}

	publisher, pubErr := NewJetStreamPublisher(jetStream, subject)
	if pubErr != nil {
		natsConnection.Close()

		return nil, nil, pubErr
	}

	return publisher, natsConnection.Close, nil
}

// NewStreamConfig describes the stream that stores processed-document events.
func NewStreamConfig(name, subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        name,
		Description: "Processed document notifications",
		Subjects:    []string{subject},
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     -1,
		MaxBytes:    -1,
		Discard:     jetstream.DiscardOld,
		MaxAge:      0,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}
}
