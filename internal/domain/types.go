// Package domain defines the core records of the gift-exchange system:
// events, their participants, the draw's assignments, and the email audit log.
package domain

import "time"

// EventStatus tracks how far an event has progressed through its lifecycle.
type EventStatus string

const (
	// StatusDraft is the initial state: participants are being collected.
	StatusDraft EventStatus = "draft"
	// StatusSorted means a draw has been executed and assignments exist.
	StatusSorted EventStatus = "sorted"
	// StatusEmailsSent means notification dispatch has been attempted
	// for every assignment (not necessarily delivered).
	StatusEmailsSent EventStatus = "emails_sent"
)

// Email log statuses. Webhook callbacks may overwrite these with
// provider-specific delivery statuses ("delivered", "soft_bounced", ...).
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// Event is a gift-exchange event owned by a single organizer.
// OrganizerEmail is the immutable ownership key: every operation on the
// event and its sub-collections is authorized against it.
type Event struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Date            string      `json:"date,omitempty"`
	SuggestedAmount string      `json:"suggestedAmount,omitempty"`
	CustomMessage   string      `json:"customMessage,omitempty"`
	OrganizerEmail  string      `json:"organizerEmail"`
	Status          EventStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt,omitempty"`
	LastRaffleAt    *time.Time  `json:"lastRaffleAt,omitempty"`
	LastEmailSentAt *time.Time  `json:"lastEmailSentAt,omitempty"`
}

// Participant belongs to exactly one event. Identity is the ID; the email
// is a mutable attribute, stored lowercased and unique per event.
type Participant struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Assignment is one giver→receiver edge of the draw's cycle. The name and
// email fields are snapshots of the participants at draw time; only
// GiverEmail is repaired when a participant's email later changes
// (receiver email is never stored, so there is nothing to repair there).
type Assignment struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId"`
	GiverID      string    `json:"giverId"`
	GiverName    string    `json:"giverName"`
	GiverEmail   string    `json:"giverEmail"`
	ReceiverID   string    `json:"receiverId"`
	ReceiverName string    `json:"receiverName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EmailLog is an append-only record of one notification attempt. Only the
// webhook receiver mutates it afterwards, updating Status and WebhookData
// when a delivery-status callback arrives correlated by MessageID.
type EmailLog struct {
	ID               string         `json:"id"`
	EventID          string         `json:"eventId"`
	ParticipantID    string         `json:"participantId"`
	ParticipantName  string         `json:"participantName"`
	ParticipantEmail string         `json:"participantEmail"`
	AssignmentID     string         `json:"assignmentId,omitempty"`
	MessageID        string         `json:"messageId,omitempty"`
	Status           string         `json:"status"`
	Error            string         `json:"error,omitempty"`
	SentAt           time.Time      `json:"sentAt"`
	UpdatedAt        *time.Time     `json:"updatedAt,omitempty"`
	Resent           bool           `json:"resent,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	WebhookData      map[string]any `json:"webhookData,omitempty"`
}
