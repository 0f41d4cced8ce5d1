package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/gift-exchange/internal/config"
)

func TestNewSelectsDemoModeForWeakKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
		demo bool
	}{
		{"empty key", "", true},
		{"short key", "abc123", true},
		{"demo prefix", "demo_mlsn_1234567890abcdef", true},
		{"real key", "mlsn_1234567890abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(config.MailerConfig{Provider: "mailersend", APIKey: tt.key})
			require.NoError(t, err)
			assert.Equal(t, tt.demo, IsDemo(s))
		})
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(config.MailerConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestDemoSenderGeneratesSyntheticIDs(t *testing.T) {
	d := NewDemoSender()

	id1, err := d.Send(context.Background(), &Message{To: "a@example.com", Subject: "hi"})
	require.NoError(t, err)
	id2, err := d.Send(context.Background(), &Message{To: "b@example.com", Subject: "hi"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id1, "demo_message_"))
	assert.NotEqual(t, id1, id2)
}

func TestMailerSendClientSend(t *testing.T) {
	var gotAuth string
	var gotBody msSendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("X-Message-Id", "msg-abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewMailerSendClient(config.MailerConfig{
		APIKey:    "mlsn_1234567890abcdef",
		BaseURL:   srv.URL,
		FromEmail: "santa@example.com",
		FromName:  "Santa",
	})

	id, err := c.Send(context.Background(), &Message{
		To:      "alice@example.com",
		ToName:  "Alice",
		Subject: "your assignment",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "msg-abc123", id)
	assert.Equal(t, "Bearer mlsn_1234567890abcdef", gotAuth)
	assert.Equal(t, "santa@example.com", gotBody.From.Email)
	require.Len(t, gotBody.To, 1)
	assert.Equal(t, "alice@example.com", gotBody.To[0].Email)
	assert.Equal(t, "your assignment", gotBody.Subject)
}

func TestMailerSendClientSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "The to field is required."})
	}))
	defer srv.Close()

	c := NewMailerSendClient(config.MailerConfig{APIKey: "mlsn_1234567890abcdef", BaseURL: srv.URL})

	_, err := c.Send(context.Background(), &Message{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The to field is required.")
}

func TestRendererRender(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	subject, htmlBody, textBody, err := r.Render(AssignmentEmail{
		EventName:       "Office Exchange",
		EventDate:       "2026-12-24",
		GiverName:       "Alice",
		ReceiverName:    "Bob",
		SuggestedAmount: "20 EUR",
		CustomMessage:   "No gag gifts please",
	})
	require.NoError(t, err)

	assert.Contains(t, subject, "Office Exchange")
	assert.Contains(t, htmlBody, "Bob")
	assert.Contains(t, htmlBody, "20 EUR")
	assert.Contains(t, htmlBody, "No gag gifts please")
	assert.Contains(t, textBody, "secret santa for: Bob")
}

func TestRendererEscapesHTMLInNames(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, htmlBody, _, err := r.Render(AssignmentEmail{
		EventName:    "Party",
		GiverName:    "Alice",
		ReceiverName: `<script>alert("x")</script>`,
	})
	require.NoError(t, err)

	assert.NotContains(t, htmlBody, "<script>")
	assert.Contains(t, htmlBody, "&lt;script&gt;")
}

func TestRendererOmitsEmptyOptionalFields(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, htmlBody, textBody, err := r.Render(AssignmentEmail{
		EventName:    "Party",
		GiverName:    "Alice",
		ReceiverName: "Bob",
	})
	require.NoError(t, err)

	assert.NotContains(t, htmlBody, "Suggested gift amount")
	assert.NotContains(t, htmlBody, "Exchange date")
	assert.NotContains(t, textBody, "Suggested gift amount")
}
