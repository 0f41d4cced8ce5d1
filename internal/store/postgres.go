package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/gift-exchange/internal/domain"
)

// PostgresStore persists documents in PostgreSQL. Atomic batch operations
// map directly onto transactions.
type PostgresStore struct {
	db *sql.DB
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	date TEXT NOT NULL DEFAULT '',
	suggested_amount TEXT NOT NULL DEFAULT '',
	custom_message TEXT NOT NULL DEFAULT '',
	organizer_email TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ,
	last_raffle_at TIMESTAMPTZ,
	last_email_sent_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_events_organizer ON events (organizer_email);

CREATE TABLE IF NOT EXISTS participants (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_participants_event ON participants (event_id);

CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	giver_id TEXT NOT NULL,
	giver_name TEXT NOT NULL,
	giver_email TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	receiver_name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assignments_event ON assignments (event_id);

CREATE TABLE IF NOT EXISTS email_logs (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	participant_id TEXT NOT NULL,
	participant_name TEXT NOT NULL,
	participant_email TEXT NOT NULL,
	assignment_id TEXT NOT NULL DEFAULT '',
	message_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	sent_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ,
	resent BOOLEAN NOT NULL DEFAULT FALSE,
	reason TEXT NOT NULL DEFAULT '',
	webhook_data JSONB
);
CREATE INDEX IF NOT EXISTS idx_email_logs_event ON email_logs (event_id);
CREATE INDEX IF NOT EXISTS idx_email_logs_message ON email_logs (message_id);
`

// NewPostgresStore opens the database, applies pool limits, verifies
// connectivity, and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection (tests use sqlmock).
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *domain.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, date, suggested_amount, custom_message, organizer_email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.Name, ev.Date, ev.SuggestedAmount, ev.CustomMessage, ev.OrganizerEmail, string(ev.Status), ev.CreatedAt)
	return err
}

func (s *PostgresStore) scanEvent(row *sql.Row) (*domain.Event, error) {
	var ev domain.Event
	var status string
	var updatedAt, raffleAt, emailsAt sql.NullTime
	err := row.Scan(&ev.ID, &ev.Name, &ev.Date, &ev.SuggestedAmount, &ev.CustomMessage,
		&ev.OrganizerEmail, &status, &ev.CreatedAt, &updatedAt, &raffleAt, &emailsAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ev.Status = domain.EventStatus(status)
	if updatedAt.Valid {
		ev.UpdatedAt = updatedAt.Time
	}
	if raffleAt.Valid {
		t := raffleAt.Time
		ev.LastRaffleAt = &t
	}
	if emailsAt.Valid {
		t := emailsAt.Time
		ev.LastEmailSentAt = &t
	}
	return &ev, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, date, suggested_amount, custom_message, organizer_email,
		       status, created_at, updated_at, last_raffle_at, last_email_sent_at
		FROM events WHERE id = $1
	`, id)
	return s.scanEvent(row)
}

func (s *PostgresStore) EventsByOrganizer(ctx context.Context, organizerEmail string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, date, suggested_amount, custom_message, organizer_email,
		       status, created_at, updated_at, last_raffle_at, last_email_sent_at
		FROM events WHERE LOWER(organizer_email) = LOWER($1)
		ORDER BY created_at DESC
	`, organizerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var status string
		var updatedAt, raffleAt, emailsAt sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Date, &ev.SuggestedAmount, &ev.CustomMessage,
			&ev.OrganizerEmail, &status, &ev.CreatedAt, &updatedAt, &raffleAt, &emailsAt); err != nil {
			return nil, err
		}
		ev.Status = domain.EventStatus(status)
		if updatedAt.Valid {
			ev.UpdatedAt = updatedAt.Time
		}
		if raffleAt.Valid {
			t := raffleAt.Time
			ev.LastRaffleAt = &t
		}
		if emailsAt.Valid {
			t := emailsAt.Time
			ev.LastEmailSentAt = &t
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, id string, upd EventUpdate, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			name = COALESCE($2, name),
			date = COALESCE($3, date),
			suggested_amount = COALESCE($4, suggested_amount),
			custom_message = COALESCE($5, custom_message),
			updated_at = $6
		WHERE id = $1
	`, id, upd.Name, upd.Date, upd.SuggestedAmount, upd.CustomMessage, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) AddParticipant(ctx context.Context, p *domain.Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, event_id, name, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.EventID, p.Name, p.Email, p.CreatedAt)
	return err
}

func (s *PostgresStore) GetParticipant(ctx context.Context, eventID, id string) (*domain.Participant, error) {
	var p domain.Participant
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, name, email, created_at, updated_at
		FROM participants WHERE event_id = $1 AND id = $2
	`, eventID, id).Scan(&p.ID, &p.EventID, &p.Name, &p.Email, &p.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

func (s *PostgresStore) Participants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, name, email, created_at, updated_at
		FROM participants WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		var updatedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.Email, &p.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteParticipant(ctx context.Context, eventID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM participants WHERE event_id = $1 AND id = $2
	`, eventID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) Assignments(ctx context.Context, eventID string) ([]domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, giver_id, giver_name, giver_email, receiver_id, receiver_name, created_at
		FROM assignments WHERE event_id = $1
		ORDER BY id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.EventID, &a.GiverID, &a.GiverName, &a.GiverEmail,
			&a.ReceiverID, &a.ReceiverName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceAssignments(ctx context.Context, eventID string, assignments []domain.Assignment, raffleAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("clearing previous assignments: %w", err)
	}

	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (id, event_id, giver_id, giver_name, giver_email, receiver_id, receiver_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, a.ID, a.EventID, a.GiverID, a.GiverName, a.GiverEmail, a.ReceiverID, a.ReceiverName, a.CreatedAt); err != nil {
			return fmt.Errorf("inserting assignment: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events SET status = $2, last_raffle_at = $3, updated_at = $3 WHERE id = $1
	`, eventID, string(domain.StatusSorted), raffleAt)
	if err != nil {
		return fmt.Errorf("marking event sorted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (s *PostgresStore) SyncParticipantEmail(ctx context.Context, eventID, participantID, newEmail string, at time.Time) error {
	newEmail = strings.ToLower(newEmail)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning sync transaction: %w", err)
	}
	defer tx.Rollback()

	var oldEmail string
	err = tx.QueryRowContext(ctx, `
		SELECT email FROM participants WHERE event_id = $1 AND id = $2
	`, eventID, participantID).Scan(&oldEmail)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE participants SET email = $3, updated_at = $4 WHERE event_id = $1 AND id = $2
	`, eventID, participantID, newEmail, at); err != nil {
		return fmt.Errorf("updating participant email: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE assignments SET giver_email = $3 WHERE event_id = $1 AND LOWER(giver_email) = LOWER($2)
	`, eventID, oldEmail, newEmail); err != nil {
		return fmt.Errorf("syncing assignment giver emails: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) AppendEmailLog(ctx context.Context, entry *domain.EmailLog) error {
	data, err := marshalWebhookData(entry.WebhookData)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_logs (id, event_id, participant_id, participant_name, participant_email,
			assignment_id, message_id, status, error, sent_at, resent, reason, webhook_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, entry.ID, entry.EventID, entry.ParticipantID, entry.ParticipantName, entry.ParticipantEmail,
		entry.AssignmentID, entry.MessageID, entry.Status, entry.Error, entry.SentAt,
		entry.Resent, entry.Reason, data)
	return err
}

func (s *PostgresStore) RecordDispatch(ctx context.Context, eventID string, logs []domain.EmailLog, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning dispatch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range logs {
		data, err := marshalWebhookData(entry.WebhookData)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO email_logs (id, event_id, participant_id, participant_name, participant_email,
				assignment_id, message_id, status, error, sent_at, resent, reason, webhook_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, entry.ID, entry.EventID, entry.ParticipantID, entry.ParticipantName, entry.ParticipantEmail,
			entry.AssignmentID, entry.MessageID, entry.Status, entry.Error, entry.SentAt,
			entry.Resent, entry.Reason, data); err != nil {
			return fmt.Errorf("inserting email log: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events SET status = $2, last_email_sent_at = $3, updated_at = $3 WHERE id = $1
	`, eventID, string(domain.StatusEmailsSent), at)
	if err != nil {
		return fmt.Errorf("marking event emails_sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (s *PostgresStore) EmailLogs(ctx context.Context, eventID string) ([]domain.EmailLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, participant_id, participant_name, participant_email,
		       assignment_id, message_id, status, error, sent_at, updated_at, resent, reason, webhook_data
		FROM email_logs WHERE event_id = $1
		ORDER BY sent_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EmailLog
	for rows.Next() {
		entry, err := scanEmailLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindEmailLogByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, participant_id, participant_name, participant_email,
		       assignment_id, message_id, status, error, sent_at, updated_at, resent, reason, webhook_data
		FROM email_logs WHERE message_id = $1
		LIMIT 1
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanEmailLog(rows)
}

func (s *PostgresStore) UpdateEmailLogStatus(ctx context.Context, eventID, logID, status string, webhookData map[string]any, at time.Time) error {
	data, err := marshalWebhookData(webhookData)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_logs SET status = $3, webhook_data = $4, updated_at = $5
		WHERE event_id = $1 AND id = $2
	`, eventID, logID, status, data, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func marshalWebhookData(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling webhook data: %w", err)
	}
	return b, nil
}

func scanEmailLog(rows *sql.Rows) (*domain.EmailLog, error) {
	var entry domain.EmailLog
	var updatedAt sql.NullTime
	var webhookData []byte
	if err := rows.Scan(&entry.ID, &entry.EventID, &entry.ParticipantID, &entry.ParticipantName,
		&entry.ParticipantEmail, &entry.AssignmentID, &entry.MessageID, &entry.Status, &entry.Error,
		&entry.SentAt, &updatedAt, &entry.Resent, &entry.Reason, &webhookData); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		entry.UpdatedAt = &t
	}
	if len(webhookData) > 0 {
		if err := json.Unmarshal(webhookData, &entry.WebhookData); err != nil {
			return nil, fmt.Errorf("unmarshaling webhook data: %w", err)
		}
	}
	return &entry, nil
}
