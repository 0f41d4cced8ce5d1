package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/gift-exchange/internal/config"
)

// MailerSendClient sends email through the MailerSend REST API.
type MailerSendClient struct {
	apiKey    string
	baseURL   string
	fromEmail string
	fromName  string
	client    *http.Client
}

// NewMailerSendClient builds the API client from configuration.
func NewMailerSendClient(cfg config.MailerConfig) *MailerSendClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &MailerSendClient{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		client:    &http.Client{Timeout: timeout},
	}
}

type msAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type msSendRequest struct {
	From    msAddress   `json:"from"`
	To      []msAddress `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Send posts the message to /email. MailerSend accepts with 202 and
// returns the message id in the X-Message-Id header.
func (c *MailerSendClient) Send(ctx context.Context, msg *Message) (string, error) {
	payload := msSendRequest{
		From:    msAddress{Email: c.fromEmail, Name: c.fromName},
		To:      []msAddress{{Email: msg.To, Name: msg.ToName}},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("MailerSend API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		json.Unmarshal(raw, &apiErr)
		if apiErr.Message != "" {
			return "", fmt.Errorf("MailerSend rejected send (status %d): %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("MailerSend rejected send (status %d)", resp.StatusCode)
	}

	messageID := resp.Header.Get("X-Message-Id")
	if messageID == "" {
		var respBody struct {
			MessageID string `json:"message_id"`
		}
		json.NewDecoder(resp.Body).Decode(&respBody)
		messageID = respBody.MessageID
	}
	return messageID, nil
}
