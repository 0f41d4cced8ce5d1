package store

import (
	"sort"

	"github.com/ignite/gift-exchange/internal/domain"
)

// Listing order is part of the store contract: events newest-first,
// participants in insertion order, assignments by id, email logs
// newest-first.

func sortEventsNewestFirst(events []domain.Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
}

func sortParticipantsOldestFirst(participants []domain.Participant) {
	sort.Slice(participants, func(i, j int) bool { return participants[i].CreatedAt.Before(participants[j].CreatedAt) })
}

func sortAssignmentsByID(assignments []domain.Assignment) {
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
}

func sortEmailLogsNewestFirst(logs []domain.EmailLog) {
	sort.Slice(logs, func(i, j int) bool { return logs[i].SentAt.After(logs[j].SentAt) })
}
