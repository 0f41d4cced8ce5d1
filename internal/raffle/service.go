// Package raffle implements the gift-exchange engine: event and
// participant management, the draw, and the email identity-sync rules.
package raffle

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/gift-exchange/internal/apperr"
	"github.com/ignite/gift-exchange/internal/domain"
	"github.com/ignite/gift-exchange/internal/pkg/logger"
	"github.com/ignite/gift-exchange/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Resender re-delivers a participant's assignment notification after their
// email address changes. Implemented by the notify dispatcher.
type Resender interface {
	ResendAssignment(ctx context.Context, ev *domain.Event, p *domain.Participant) (bool, error)
}

// Archiver receives a snapshot of the draw result. Best-effort; failures
// never fail the draw.
type Archiver interface {
	ArchiveDraw(ctx context.Context, ev *domain.Event, assignments []domain.Assignment)
}

// Service owns all event-scoped business rules. Every operation takes the
// caller's verified email and authorizes it against the event organizer.
type Service struct {
	store    store.Store
	resender Resender
	archiver Archiver
	now      func() time.Time
	shuffle  func(n int, swap func(i, j int))
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithResender wires the post-email-change notification resend.
func WithResender(r Resender) Option {
	return func(s *Service) { s.resender = r }
}

// WithArchiver wires the post-draw snapshot archival.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// NewService builds the engine on top of a store.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		now:     func() time.Time { return time.Now().UTC() },
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEventInput holds the organizer-supplied event fields.
type CreateEventInput struct {
	Name            string `json:"name"`
	Date            string `json:"date"`
	SuggestedAmount string `json:"suggestedAmount"`
	CustomMessage   string `json:"customMessage"`
}

func (s *Service) CreateEvent(ctx context.Context, caller string, in CreateEventInput) (*domain.Event, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "event name is required")
	}

	ev := &domain.Event{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Date:            strings.TrimSpace(in.Date),
		SuggestedAmount: strings.TrimSpace(in.SuggestedAmount),
		CustomMessage:   strings.TrimSpace(in.CustomMessage),
		OrganizerEmail:  strings.ToLower(caller),
		Status:          domain.StatusDraft,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "creating event", err)
	}

	logger.Info("event created", "eventId", ev.ID, "organizer", ev.OrganizerEmail)
	return ev, nil
}

func (s *Service) Events(ctx context.Context, caller string) ([]domain.Event, error) {
	events, err := s.store.EventsByOrganizer(ctx, caller)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing events", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

// Event loads an event and authorizes the caller as its organizer.
func (s *Service) Event(ctx context.Context, caller, eventID string) (*domain.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err == store.ErrNotFound {
		return nil, apperr.New(apperr.NotFound, "event not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "loading event", err)
	}
	if !strings.EqualFold(ev.OrganizerEmail, caller) {
		return nil, apperr.New(apperr.PermissionDenied, "only the event organizer can access this event")
	}
	return ev, nil
}

// UpdateEventInput holds the patchable event fields. Nil means unchanged.
type UpdateEventInput struct {
	Name            *string `json:"name"`
	Date            *string `json:"date"`
	SuggestedAmount *string `json:"suggestedAmount"`
	CustomMessage   *string `json:"customMessage"`
}

func (s *Service) UpdateEvent(ctx context.Context, caller, eventID string, in UpdateEventInput) (*domain.Event, error) {
	if _, err := s.Event(ctx, caller, eventID); err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "event name cannot be empty")
	}

	upd := store.EventUpdate{
		Name:            in.Name,
		Date:            in.Date,
		SuggestedAmount: in.SuggestedAmount,
		CustomMessage:   in.CustomMessage,
	}
	if err := s.store.UpdateEvent(ctx, eventID, upd, s.now()); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "updating event", err)
	}
	return s.Event(ctx, caller, eventID)
}

func (s *Service) AddParticipant(ctx context.Context, caller, eventID, name, email string) (*domain.Participant, error) {
	if _, err := s.Event(ctx, caller, eventID); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, apperr.New(apperr.InvalidArgument, "participant name is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperr.New(apperr.InvalidArgument, "invalid email address")
	}

	existing, err := s.store.Participants(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing participants", err)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Email, email) {
			return nil, apperr.New(apperr.AlreadyExists, "a participant with this email already exists")
		}
	}

	p := &domain.Participant{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "adding participant", err)
	}
	return p, nil
}

func (s *Service) Participants(ctx context.Context, caller, eventID string) ([]domain.Participant, error) {
	if _, err := s.Event(ctx, caller, eventID); err != nil {
		return nil, err
	}
	participants, err := s.store.Participants(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing participants", err)
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	return participants, nil
}

// RemoveParticipant deletes the participant. Assignments are left as they
// are; a removed giver simply no longer receives resends, and organizing a
// redraw is the organizer's call.
func (s *Service) RemoveParticipant(ctx context.Context, caller, eventID, participantID string) error {
	if _, err := s.Event(ctx, caller, eventID); err != nil {
		return err
	}
	err := s.store.DeleteParticipant(ctx, eventID, participantID)
	if err == store.ErrNotFound {
		return apperr.New(apperr.NotFound, "participant not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "removing participant", err)
	}
	return nil
}

// UpdateParticipantEmail changes a participant's email and atomically
// repairs the giverEmail snapshot on their assignments. When the event has
// already been drawn, the participant's assignment notification is resent
// to the new address; the returned flag reports whether that resend went
// out.
func (s *Service) UpdateParticipantEmail(ctx context.Context, caller, eventID, participantID, newEmail string) (*domain.Participant, bool, error) {
	ev, err := s.Event(ctx, caller, eventID)
	if err != nil {
		return nil, false, err
	}

	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if !emailPattern.MatchString(newEmail) {
		return nil, false, apperr.New(apperr.InvalidArgument, "invalid email address")
	}

	existing, err := s.store.Participants(ctx, eventID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, "listing participants", err)
	}
	for _, p := range existing {
		if p.ID != participantID && strings.EqualFold(p.Email, newEmail) {
			return nil, false, apperr.New(apperr.AlreadyExists, "a participant with this email already exists")
		}
	}

	err = s.store.SyncParticipantEmail(ctx, eventID, participantID, newEmail, s.now())
	if err == store.ErrNotFound {
		return nil, false, apperr.New(apperr.NotFound, "participant not found")
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, "updating participant email", err)
	}

	p, err := s.store.GetParticipant(ctx, eventID, participantID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, "reloading participant", err)
	}

	resent := false
	if s.resender != nil && (ev.Status == domain.StatusSorted || ev.Status == domain.StatusEmailsSent) {
		resent, err = s.resender.ResendAssignment(ctx, ev, p)
		if err != nil {
			// The email change itself succeeded; the resend is reported,
			// not rolled back.
			logger.Warn("assignment resend after email change failed",
				"eventId", eventID,
				"participantId", participantID,
				"error", err.Error(),
			)
			err = nil
		}
	}

	return p, resent, nil
}

// Draw shuffles the participants and assigns each one the next participant
// in the shuffled order, closing the loop from last back to first. The
// result is a single cycle covering everyone, so nobody draws themselves
// and everyone gives and receives exactly once. A redraw fully replaces
// the previous assignment set.
func (s *Service) Draw(ctx context.Context, caller, eventID string) ([]domain.Assignment, error) {
	ev, err := s.Event(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.Participants(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing participants", err)
	}
	if len(participants) < 2 {
		return nil, apperr.New(apperr.FailedPrecondition, "at least 2 participants are required for the draw")
	}

	shuffled := make([]domain.Participant, len(participants))
	copy(shuffled, participants)
	s.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	now := s.now()
	assignments := make([]domain.Assignment, len(shuffled))
	for i, giver := range shuffled {
		receiver := shuffled[(i+1)%len(shuffled)]
		assignments[i] = domain.Assignment{
			ID:           uuid.NewString(),
			EventID:      eventID,
			GiverID:      giver.ID,
			GiverName:    giver.Name,
			GiverEmail:   giver.Email,
			ReceiverID:   receiver.ID,
			ReceiverName: receiver.Name,
			CreatedAt:    now,
		}
	}

	if err := s.store.ReplaceAssignments(ctx, eventID, assignments, now); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "storing draw result", err)
	}

	logger.Info("draw executed",
		"eventId", eventID,
		"participants", len(participants),
	)

	if s.archiver != nil {
		ev.Status = domain.StatusSorted
		ev.LastRaffleAt = &now
		s.archiver.ArchiveDraw(ctx, ev, assignments)
	}

	return assignments, nil
}

func (s *Service) Assignments(ctx context.Context, caller, eventID string) ([]domain.Assignment, error) {
	if _, err := s.Event(ctx, caller, eventID); err != nil {
		return nil, err
	}
	assignments, err := s.store.Assignments(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing assignments", err)
	}
	if assignments == nil {
		assignments = []domain.Assignment{}
	}
	return assignments, nil
}
