package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/gift-exchange/internal/auth"
	"github.com/ignite/gift-exchange/internal/config"
	"github.com/ignite/gift-exchange/internal/domain"
	"github.com/ignite/gift-exchange/internal/mailer"
	"github.com/ignite/gift-exchange/internal/notify"
	"github.com/ignite/gift-exchange/internal/raffle"
	"github.com/ignite/gift-exchange/internal/store"
)

const organizer = "organizer@example.com"

type testEnv struct {
	router   http.Handler
	store    *store.MemoryStore
	handlers *Handlers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	renderer, err := mailer.NewRenderer()
	require.NoError(t, err)
	dispatcher := notify.NewDispatcher(st, mailer.NewDemoSender(), renderer)
	service := raffle.NewService(st, raffle.WithResender(dispatcher))
	verifier := auth.NewVerifier(config.AuthConfig{Enabled: false})

	handlers := NewHandlers(service, dispatcher, st)
	router, _ := SetupRoutes(handlers, verifier)
	return &testEnv{router: router, store: st, handlers: handlers}
}

// do sends an authenticated request as the organizer and decodes the JSON
// response into out (when non-nil).
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-Email", organizer)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (e *testEnv) createEvent(t *testing.T) domain.Event {
	t.Helper()
	var ev domain.Event
	rec := e.do(t, http.MethodPost, "/api/events", map[string]string{
		"name": "Office Exchange", "suggestedAmount": "20 EUR",
	}, &ev)
	require.Equal(t, http.StatusCreated, rec.Code)
	return ev
}

func (e *testEnv) addParticipants(t *testing.T, eventID string, n int) []domain.Participant {
	t.Helper()
	out := make([]domain.Participant, 0, n)
	for i := 0; i < n; i++ {
		var p domain.Participant
		rec := e.do(t, http.MethodPost, "/api/events/"+eventID+"/participants", map[string]string{
			"name":  fmt.Sprintf("Person %d", i),
			"email": fmt.Sprintf("person%d@example.com", i),
		}, &p)
		require.Equal(t, http.StatusCreated, rec.Code)
		out = append(out, p)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventCRUD(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t)
	assert.Equal(t, domain.StatusDraft, ev.Status)

	var got domain.Event
	rec := env.do(t, http.MethodGet, "/api/events/"+ev.ID, nil, &got)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ev.ID, got.ID)

	var list []domain.Event
	rec = env.do(t, http.MethodGet, "/api/events", nil, &list)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodPatch, "/api/events/"+ev.ID, map[string]string{"name": "Renamed"}, &got)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", got.Name)

	rec = env.do(t, http.MethodGet, "/api/events/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/events", map[string]string{"name": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForeignEventForbidden(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t)

	req := httptest.NewRequest(http.MethodGet, "/api/events/"+ev.ID, nil)
	req.Header.Set("X-Dev-Email", "intruder@example.com")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestParticipantEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t)
	participants := env.addParticipants(t, ev.ID, 2)

	// Duplicate email conflicts.
	rec := env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/participants", map[string]string{
		"name": "Dupe", "email": "PERSON0@example.com",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var list []domain.Participant
	rec = env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/participants", nil, &list)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list, 2)

	rec = env.do(t, http.MethodDelete, "/api/events/"+ev.ID+"/participants/"+participants[0].ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/events/"+ev.ID+"/participants/"+participants[0].ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrawEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t)

	// Too few participants.
	rec := env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/draw", nil, nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	env.addParticipants(t, ev.ID, 3)

	var result struct {
		Assignments []domain.Assignment `json:"assignments"`
		Count       int                 `json:"count"`
	}
	rec = env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/draw", nil, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, result.Count)
	require.Len(t, result.Assignments, 3)
	for _, a := range result.Assignments {
		assert.NotEqual(t, a.GiverID, a.ReceiverID)
	}

	var list []domain.Assignment
	rec = env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/assignments", nil, &list)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list, 3)
}

func TestSendEmailsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t)
	env.addParticipants(t, ev.ID, 3)

	// Dispatch before draw fails the precondition.
	rec := env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/emails", nil, nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/draw", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result notify.DispatchResult
	rec = env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/emails", nil, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, result.Sent)
	assert.True(t, result.DemoMode)

	var logs []domain.EmailLog
	rec = env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/emails/logs", nil, &logs)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, logs, 3)
}

func TestUpdateParticipantEmailResendFlow(t *testing.T) {
	env := newTestEnv(t)
	ev := env.createEvent(t)
	participants := env.addParticipants(t, ev.ID, 2)

	rec := env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/draw", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Participant domain.Participant `json:"participant"`
		Resent      bool               `json:"resent"`
	}
	rec = env.do(t, http.MethodPatch,
		"/api/events/"+ev.ID+"/participants/"+participants[0].ID,
		map[string]string{"email": "New.Address@Example.com"}, &result)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new.address@example.com", result.Participant.Email)
	assert.True(t, result.Resent)

	// The resend shows up in the audit log.
	var logs []domain.EmailLog
	rec = env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/emails/logs", nil, &logs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Resent)
	assert.Equal(t, notify.ResendReasonEmailUpdated, logs[0].Reason)
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Dev-Email", organizer)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
