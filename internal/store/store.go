// Package store persists events and their sub-collections (participants,
// assignments, email logs) behind a document-store interface. Three
// backends: DynamoDB, PostgreSQL, and an in-memory store for tests.
//
// The engine's consistency contract rests on three atomic multi-write
// operations: ReplaceAssignments, SyncParticipantEmail, and RecordDispatch.
// Each backend must apply them all-or-nothing so that no reader ever
// observes a partially replaced assignment set.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/gift-exchange/internal/config"
	"github.com/ignite/gift-exchange/internal/domain"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// EventUpdate holds a partial update of the mutable event fields. Nil
// fields are left untouched. OrganizerEmail and Status are deliberately
// absent: ownership is immutable and status only moves through the
// engine's atomic operations.
type EventUpdate struct {
	Name            *string
	Date            *string
	SuggestedAmount *string
	CustomMessage   *string
}

// Store is the document datastore used by the assignment engine and the
// notification dispatcher.
type Store interface {
	// Events
	CreateEvent(ctx context.Context, ev *domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	EventsByOrganizer(ctx context.Context, organizerEmail string) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, id string, upd EventUpdate, at time.Time) error

	// Participants
	AddParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, eventID, id string) (*domain.Participant, error)
	Participants(ctx context.Context, eventID string) ([]domain.Participant, error)
	DeleteParticipant(ctx context.Context, eventID, id string) error

	// Assignments
	Assignments(ctx context.Context, eventID string) ([]domain.Assignment, error)

	// ReplaceAssignments atomically deletes the event's entire previous
	// assignment set, inserts the new one, and marks the event sorted with
	// the raffle timestamp. All-or-nothing.
	ReplaceAssignments(ctx context.Context, eventID string, assignments []domain.Assignment, raffleAt time.Time) error

	// SyncParticipantEmail atomically updates the participant's email and
	// rewrites the giverEmail snapshot of every assignment whose giverEmail
	// matches the participant's previous email case-insensitively. The
	// assignment topology (giver/receiver ids) is never touched.
	SyncParticipantEmail(ctx context.Context, eventID, participantID, newEmail string, at time.Time) error

	// Email logs
	AppendEmailLog(ctx context.Context, entry *domain.EmailLog) error

	// RecordDispatch atomically appends the dispatch's email logs and marks
	// the event emails_sent with the dispatch timestamp.
	RecordDispatch(ctx context.Context, eventID string, logs []domain.EmailLog, at time.Time) error

	EmailLogs(ctx context.Context, eventID string) ([]domain.EmailLog, error)

	// FindEmailLogByMessageID searches email logs across all events for the
	// given provider message id (webhook correlation).
	FindEmailLogByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error)

	UpdateEmailLogStatus(ctx context.Context, eventID, logID, status string, webhookData map[string]any, at time.Time) error

	Close() error
}

// New builds a store from configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "dynamo":
		return NewDynamoStore(ctx, cfg.DynamoDBTable, cfg.AWSRegion, cfg.AWSProfile)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
