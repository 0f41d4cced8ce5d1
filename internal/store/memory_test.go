package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/gift-exchange/internal/domain"
)

func seedEvent(t *testing.T, s *MemoryStore, id string) *domain.Event {
	t.Helper()
	ev := &domain.Event{
		ID:             id,
		Name:           "Office Exchange",
		OrganizerEmail: "organizer@example.com",
		Status:         domain.StatusDraft,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev))
	return ev
}

func TestMemoryStoreEventLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seedEvent(t, s, "ev1")

	got, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, "Office Exchange", got.Name)
	assert.Equal(t, domain.StatusDraft, got.Status)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	name := "Renamed"
	now := time.Now().UTC()
	require.NoError(t, s.UpdateEvent(ctx, "ev1", EventUpdate{Name: &name}, now))

	got, err = s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "organizer@example.com", got.OrganizerEmail)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestMemoryStoreEventsByOrganizerNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateEvent(ctx, &domain.Event{
			ID:             id,
			OrganizerEmail: "Organizer@Example.com",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateEvent(ctx, &domain.Event{
		ID:             "other",
		OrganizerEmail: "someone@else.com",
		CreatedAt:      base,
	}))

	events, err := s.EventsByOrganizer(ctx, "organizer@example.com")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "new", events[0].ID)
	assert.Equal(t, "old", events[2].ID)
}

func TestMemoryStoreParticipants(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	base := time.Now().UTC()
	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, s.AddParticipant(ctx, &domain.Participant{
			ID:        id,
			EventID:   "ev1",
			Name:      "Participant " + id,
			Email:     id + "@example.com",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := s.Participants(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p1", list[0].ID, "insertion order preserved")

	require.NoError(t, s.DeleteParticipant(ctx, "ev1", "p2"))
	list, err = s.Participants(ctx, "ev1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.ErrorIs(t, s.DeleteParticipant(ctx, "ev1", "p2"), ErrNotFound)
	_, err = s.GetParticipant(ctx, "ev1", "p2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReplaceAssignments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	// An undrawn event has an empty assignment list, not an error.
	initial, err := s.Assignments(ctx, "ev1")
	require.NoError(t, err)
	assert.Empty(t, initial)

	first := []domain.Assignment{
		{ID: "a1", EventID: "ev1", GiverID: "p1", GiverEmail: "p1@example.com", ReceiverID: "p2"},
		{ID: "a2", EventID: "ev1", GiverID: "p2", GiverEmail: "p2@example.com", ReceiverID: "p1"},
	}
	raffleAt := time.Now().UTC()
	require.NoError(t, s.ReplaceAssignments(ctx, "ev1", first, raffleAt))

	ev, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSorted, ev.Status)
	require.NotNil(t, ev.LastRaffleAt)
	assert.Equal(t, raffleAt, *ev.LastRaffleAt)

	// A redraw fully replaces the previous set.
	second := []domain.Assignment{
		{ID: "b1", EventID: "ev1", GiverID: "p2", ReceiverID: "p1"},
	}
	require.NoError(t, s.ReplaceAssignments(ctx, "ev1", second, raffleAt.Add(time.Minute)))

	got, err := s.Assignments(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)

	assert.ErrorIs(t, s.ReplaceAssignments(ctx, "missing", first, raffleAt), ErrNotFound)
}

func TestMemoryStoreSyncParticipantEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	require.NoError(t, s.AddParticipant(ctx, &domain.Participant{
		ID: "p1", EventID: "ev1", Email: "Alice@Example.com", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.ReplaceAssignments(ctx, "ev1", []domain.Assignment{
		{ID: "a1", EventID: "ev1", GiverID: "p1", GiverEmail: "alice@example.com", ReceiverID: "p2"},
		{ID: "a2", EventID: "ev1", GiverID: "p2", GiverEmail: "bob@example.com", ReceiverID: "p1"},
	}, time.Now().UTC()))

	require.NoError(t, s.SyncParticipantEmail(ctx, "ev1", "p1", "Alice.New@Example.com", time.Now().UTC()))

	p, err := s.GetParticipant(ctx, "ev1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", p.Email)

	got, err := s.Assignments(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	byID := map[string]domain.Assignment{}
	for _, a := range got {
		byID[a.ID] = a
	}
	assert.Equal(t, "alice.new@example.com", byID["a1"].GiverEmail)
	assert.Equal(t, "bob@example.com", byID["a2"].GiverEmail, "unrelated snapshots untouched")
	assert.Equal(t, "p2", byID["a1"].ReceiverID, "topology untouched")

	assert.ErrorIs(t, s.SyncParticipantEmail(ctx, "ev1", "missing", "x@y.com", time.Now().UTC()), ErrNotFound)
}

func TestMemoryStoreRecordDispatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	at := time.Now().UTC()
	logs := []domain.EmailLog{
		{ID: "l1", EventID: "ev1", ParticipantEmail: "a@example.com", Status: domain.EmailStatusSent, MessageID: "msg-1", SentAt: at},
		{ID: "l2", EventID: "ev1", ParticipantEmail: "b@example.com", Status: domain.EmailStatusFailed, Error: "boom", SentAt: at.Add(time.Second)},
	}
	require.NoError(t, s.RecordDispatch(ctx, "ev1", logs, at))

	ev, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmailsSent, ev.Status)
	require.NotNil(t, ev.LastEmailSentAt)

	got, err := s.EmailLogs(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "l2", got[0].ID, "newest first")

	found, err := s.FindEmailLogByMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "l1", found.ID)

	_, err = s.FindEmailLogByMessageID(ctx, "msg-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateEmailLogStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	at := time.Now().UTC()
	require.NoError(t, s.AppendEmailLog(ctx, &domain.EmailLog{
		ID: "l1", EventID: "ev1", Status: domain.EmailStatusSent, MessageID: "msg-1", SentAt: at,
	}))

	payload := map[string]any{"type": "activity.delivered"}
	require.NoError(t, s.UpdateEmailLogStatus(ctx, "ev1", "l1", "delivered", payload, at.Add(time.Minute)))

	logs, err := s.EmailLogs(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "delivered", logs[0].Status)
	assert.Equal(t, payload, logs[0].WebhookData)
	require.NotNil(t, logs[0].UpdatedAt)

	err = s.UpdateEmailLogStatus(ctx, "ev1", "missing", "delivered", nil, at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	got, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, "Office Exchange", again.Name)
}
