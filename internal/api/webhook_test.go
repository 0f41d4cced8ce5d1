package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/gift-exchange/internal/domain"
)

func seedWebhookLog(t *testing.T, env *testEnv, messageID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.store.CreateEvent(ctx, &domain.Event{
		ID: "ev1", Name: "Party", OrganizerEmail: organizer,
		Status: domain.StatusEmailsSent, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, env.store.AppendEmailLog(ctx, &domain.EmailLog{
		ID: "l1", EventID: "ev1", ParticipantEmail: "a@example.com",
		Status: domain.EmailStatusSent, MessageID: messageID, SentAt: time.Now().UTC(),
	}))
}

func postWebhook(t *testing.T, env *testEnv, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mailersend", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func assertLogStatus(t *testing.T, env *testEnv, want string) {
	t.Helper()
	logs, err := env.store.EmailLogs(context.Background(), "ev1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, want, logs[0].Status)
}

func TestWebhookBareObjectShape(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	rec := postWebhook(t, env, map[string]any{
		"type": "activity.delivered",
		"data": map[string]any{"message_id": "msg-1", "type": "activity.delivered"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assertLogStatus(t, env, "delivered")
}

func TestWebhookDataListShape(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	rec := postWebhook(t, env, map[string]any{
		"data": []any{
			map[string]any{"message_id": "msg-1", "type": "activity.soft_bounced"},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assertLogStatus(t, env, "soft_bounced")
}

func TestWebhookEventsListShape(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	rec := postWebhook(t, env, map[string]any{
		"events": []any{
			map[string]any{"id": "msg-1", "event": "opened"},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assertLogStatus(t, env, "opened")
}

func TestWebhookNestedMessageID(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	rec := postWebhook(t, env, map[string]any{
		"type": "activity.clicked",
		"data": map[string]any{
			"message": map[string]any{"id": "msg-1"},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assertLogStatus(t, env, "clicked")
}

func TestWebhookUnknownMessageIDSkipped(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	var result map[string]int
	rec := postWebhook(t, env, map[string]any{
		"data": []any{
			map[string]any{"message_id": "msg-unknown", "type": "activity.delivered"},
		},
	})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, result["processed"])
	assert.Equal(t, 1, result["skipped"])
	assertLogStatus(t, env, domain.EmailStatusSent)
}

func TestWebhookRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mailersend", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(t, env, map[string]any{"unrelated": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/mailersend", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookDeduplicatesWithRedis(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// Rebuild the router with redis enabled on the same handlers. The
	// handler set is reachable through the store-backed env only, so wire
	// dedup directly.
	handlers := env.handlers
	handlers.SetRedisClient(client, 3600)

	payload := map[string]any{
		"data": []any{
			map[string]any{"message_id": "msg-1", "type": "activity.delivered"},
		},
	}

	var result map[string]int
	rec := postWebhook(t, env, payload)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result["processed"])

	rec = postWebhook(t, env, payload)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result["processed"], "replayed event skipped")
	assert.Equal(t, 1, result["skipped"])

	// A different status for the same message is not a duplicate.
	rec = postWebhook(t, env, map[string]any{
		"data": []any{
			map[string]any{"message_id": "msg-1", "type": "activity.opened"},
		},
	})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result["processed"])
}

func TestWebhookRetryAfterSkipStillApplies(t *testing.T) {
	env := newTestEnv(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	env.handlers.SetRedisClient(client, 3600)

	payload := map[string]any{
		"data": []any{
			map[string]any{"message_id": "msg-1", "type": "activity.delivered"},
		},
	}

	// First delivery races ahead of the send pipeline: no log yet, so the
	// event is skipped and must not consume the dedup slot.
	var result map[string]int
	rec := postWebhook(t, env, payload)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result["processed"])
	assert.Equal(t, 1, result["skipped"])

	seedWebhookLog(t, env, "msg-1")

	// The provider's retry of the identical event must go through.
	rec = postWebhook(t, env, payload)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result["processed"], "retry applied after log became visible")
	assertLogStatus(t, env, "delivered")

	// Only now is the event a duplicate.
	rec = postWebhook(t, env, payload)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result["processed"])
	assert.Equal(t, 1, result["skipped"])
}

func TestWebhookMissingTypeRecordsUnknown(t *testing.T) {
	env := newTestEnv(t)
	seedWebhookLog(t, env, "msg-1")

	rec := postWebhook(t, env, map[string]any{
		"data": []any{
			map[string]any{"message_id": "msg-1"},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assertLogStatus(t, env, "unknown")
}
