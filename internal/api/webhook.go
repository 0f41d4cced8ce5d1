package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/gift-exchange/internal/pkg/logger"
	"github.com/ignite/gift-exchange/internal/store"
)

// webhookEvent is one normalized delivery-status callback.
type webhookEvent struct {
	messageID string
	status    string
	payload   map[string]any
}

// MailerSendWebhook handles POST /webhooks/mailersend. MailerSend has
// shipped several payload shapes over time (a bare event object, a list
// under "data", a list under "events"), so the receiver normalizes all of
// them before correlating events to email logs by provider message id.
func (h *Handlers) MailerSendWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "reading body"})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	events := normalizeWebhookPayload(payload)
	if len(events) == 0 {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "no recognizable events in payload"})
		return
	}

	processed, skipped := 0, 0
	for _, evt := range events {
		if evt.messageID == "" {
			skipped++
			continue
		}
		if h.seenWebhook(r, evt) {
			skipped++
			continue
		}

		entry, err := h.store.FindEmailLogByMessageID(r.Context(), evt.messageID)
		if err == store.ErrNotFound {
			// Not ours, or demo-mode id from before a restart. No dedup
			// mark: the log may appear before the provider retries.
			skipped++
			continue
		}
		if err != nil {
			logger.Error("webhook log lookup failed", "messageId", evt.messageID, "error", err.Error())
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}

		err = h.store.UpdateEmailLogStatus(r.Context(), entry.EventID, entry.ID,
			evt.status, evt.payload, time.Now().UTC())
		if err != nil {
			logger.Error("webhook status update failed", "messageId", evt.messageID, "error", err.Error())
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "update failed"})
			return
		}
		// Only an applied update consumes the dedup slot, so provider
		// retries of a skipped or failed delivery still go through.
		h.markWebhook(r, evt)
		processed++
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"processed": processed,
		"skipped":   skipped,
	})
}

func webhookDedupKey(evt webhookEvent) string {
	return "webhook:" + evt.messageID + ":" + evt.status
}

// seenWebhook reports whether the event's dedup key is already set.
// Without redis every event is treated as fresh.
func (h *Handlers) seenWebhook(r *http.Request, evt webhookEvent) bool {
	if h.redis == nil {
		return false
	}
	n, err := h.redis.Exists(r.Context(), webhookDedupKey(evt)).Result()
	if err != nil {
		logger.Warn("webhook dedup check failed, treating as fresh", "error", err.Error())
		return false
	}
	return n > 0
}

// markWebhook sets the dedup key after the status update has been applied.
func (h *Handlers) markWebhook(r *http.Request, evt webhookEvent) {
	if h.redis == nil {
		return
	}
	ttl := time.Duration(h.dedupTTL) * time.Second
	if err := h.redis.Set(r.Context(), webhookDedupKey(evt), 1, ttl).Err(); err != nil {
		logger.Warn("webhook dedup mark failed", "error", err.Error())
	}
}

// normalizeWebhookPayload flattens the known payload shapes into a list of
// events.
func normalizeWebhookPayload(payload map[string]any) []webhookEvent {
	if list, ok := payload["data"].([]any); ok {
		return normalizeList(list)
	}
	if list, ok := payload["events"].([]any); ok {
		return normalizeList(list)
	}
	if evt, ok := normalizeOne(payload); ok {
		return []webhookEvent{evt}
	}
	return nil
}

func normalizeList(list []any) []webhookEvent {
	out := make([]webhookEvent, 0, len(list))
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if evt, ok := normalizeOne(obj); ok {
			out = append(out, evt)
		}
	}
	return out
}

// normalizeOne extracts message id and status from a single event object.
// Message id lives at data.message_id, data.message.id, message_id, or id;
// status at data.type, type, or event.
func normalizeOne(obj map[string]any) (webhookEvent, bool) {
	data, _ := obj["data"].(map[string]any)

	messageID := ""
	if data != nil {
		messageID = stringField(data, "message_id")
		if messageID == "" {
			if msg, ok := data["message"].(map[string]any); ok {
				messageID = stringField(msg, "id")
			}
		}
	}
	if messageID == "" {
		messageID = stringField(obj, "message_id")
	}
	if messageID == "" {
		messageID = stringField(obj, "id")
	}

	status := ""
	if data != nil {
		status = stringField(data, "type")
	}
	if status == "" {
		status = stringField(obj, "type")
	}
	if status == "" {
		status = stringField(obj, "event")
	}
	status = strings.TrimPrefix(status, "activity.")

	if messageID == "" && status == "" {
		return webhookEvent{}, false
	}
	// A recognizable message with no event type still gets recorded.
	if status == "" {
		status = "unknown"
	}
	return webhookEvent{
		messageID: messageID,
		status:    status,
		payload:   obj,
	}, true
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
