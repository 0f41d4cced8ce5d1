package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ignite/gift-exchange/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory store. It backs tests and demo
// runs; the mutex gives it the same all-or-nothing batch visibility the
// real backends get from transactions.
type MemoryStore struct {
	mu           sync.RWMutex
	events       map[string]*domain.Event
	participants map[string]map[string]*domain.Participant // eventID → id → participant
	assignments  map[string]map[string]*domain.Assignment  // eventID → id → assignment
	emailLogs    map[string]map[string]*domain.EmailLog    // eventID → id → log
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:       make(map[string]*domain.Event),
		participants: make(map[string]map[string]*domain.Participant),
		assignments:  make(map[string]map[string]*domain.Assignment),
		emailLogs:    make(map[string]map[string]*domain.EmailLog),
	}
}

func (m *MemoryStore) CreateEvent(ctx context.Context, ev *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ev
	m.events[ev.ID] = &cp
	m.participants[ev.ID] = make(map[string]*domain.Participant)
	m.assignments[ev.ID] = make(map[string]*domain.Assignment)
	m.emailLogs[ev.ID] = make(map[string]*domain.EmailLog)
	return nil
}

func (m *MemoryStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *MemoryStore) EventsByOrganizer(ctx context.Context, organizerEmail string) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Event
	for _, ev := range m.events {
		if strings.EqualFold(ev.OrganizerEmail, organizerEmail) {
			out = append(out, *ev)
		}
	}
	sortEventsNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) UpdateEvent(ctx context.Context, id string, upd EventUpdate, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Name != nil {
		ev.Name = *upd.Name
	}
	if upd.Date != nil {
		ev.Date = *upd.Date
	}
	if upd.SuggestedAmount != nil {
		ev.SuggestedAmount = *upd.SuggestedAmount
	}
	if upd.CustomMessage != nil {
		ev.CustomMessage = *upd.CustomMessage
	}
	ev.UpdatedAt = at
	return nil
}

func (m *MemoryStore) AddParticipant(ctx context.Context, p *domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.participants[p.EventID]
	if !ok {
		return ErrNotFound
	}
	cp := *p
	col[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetParticipant(ctx context.Context, eventID, id string) (*domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[eventID][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) Participants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col := m.participants[eventID]
	out := make([]domain.Participant, 0, len(col))
	for _, p := range col {
		out = append(out, *p)
	}
	sortParticipantsOldestFirst(out)
	return out, nil
}

func (m *MemoryStore) DeleteParticipant(ctx context.Context, eventID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.participants[eventID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := col[id]; !ok {
		return ErrNotFound
	}
	delete(col, id)
	return nil
}

func (m *MemoryStore) Assignments(ctx context.Context, eventID string) ([]domain.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col := m.assignments[eventID]
	out := make([]domain.Assignment, 0, len(col))
	for _, a := range col {
		out = append(out, *a)
	}
	sortAssignmentsByID(out)
	return out, nil
}

func (m *MemoryStore) ReplaceAssignments(ctx context.Context, eventID string, assignments []domain.Assignment, raffleAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}

	col := make(map[string]*domain.Assignment, len(assignments))
	for i := range assignments {
		cp := assignments[i]
		col[cp.ID] = &cp
	}
	m.assignments[eventID] = col

	ev.Status = domain.StatusSorted
	t := raffleAt
	ev.LastRaffleAt = &t
	ev.UpdatedAt = raffleAt
	return nil
}

func (m *MemoryStore) SyncParticipantEmail(ctx context.Context, eventID, participantID, newEmail string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[eventID][participantID]
	if !ok {
		return ErrNotFound
	}
	oldEmail := p.Email
	p.Email = strings.ToLower(newEmail)
	p.UpdatedAt = at

	for _, a := range m.assignments[eventID] {
		if strings.EqualFold(a.GiverEmail, oldEmail) {
			a.GiverEmail = strings.ToLower(newEmail)
		}
	}
	return nil
}

func (m *MemoryStore) AppendEmailLog(ctx context.Context, entry *domain.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.emailLogs[entry.EventID]
	if !ok {
		return ErrNotFound
	}
	cp := *entry
	col[entry.ID] = &cp
	return nil
}

func (m *MemoryStore) RecordDispatch(ctx context.Context, eventID string, logs []domain.EmailLog, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	col := m.emailLogs[eventID]
	for i := range logs {
		cp := logs[i]
		col[cp.ID] = &cp
	}
	ev.Status = domain.StatusEmailsSent
	t := at
	ev.LastEmailSentAt = &t
	ev.UpdatedAt = at
	return nil
}

func (m *MemoryStore) EmailLogs(ctx context.Context, eventID string) ([]domain.EmailLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col := m.emailLogs[eventID]
	out := make([]domain.EmailLog, 0, len(col))
	for _, l := range col {
		out = append(out, *l)
	}
	sortEmailLogsNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) FindEmailLogByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, col := range m.emailLogs {
		for _, l := range col {
			if l.MessageID == messageID {
				cp := *l
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateEmailLogStatus(ctx context.Context, eventID, logID, status string, webhookData map[string]any, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.emailLogs[eventID][logID]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	l.WebhookData = webhookData
	t := at
	l.UpdatedAt = &t
	return nil
}

func (m *MemoryStore) Close() error { return nil }
