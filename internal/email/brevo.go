package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cookaing/campaign-engine/internal/config"
)

// BrevoProvider sends email via the Brevo (formerly Sendinblue) v3 API.
type BrevoProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewBrevoProvider creates a Brevo provider from configuration.
func NewBrevoProvider(cfg config.BrevoConfig) *BrevoProvider {
	return &BrevoProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// Name implements Provider.
func (b *BrevoProvider) Name() string { return "brevo" }

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
	Text    string         `json:"textContent,omitempty"`
}

// Send implements Provider via POST /smtp/email.
func (b *BrevoProvider) Send(ctx context.Context, msg Message) (string, error) {
	payload := brevoSendRequest{
		Sender:  brevoContact{Email: msg.FromEmail, Name: msg.FromName},
		To:      []brevoContact{{Email: msg.To}},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/smtp/email", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("brevo status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result struct {
		MessageID string `json:"messageId"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	return result.MessageID, nil
}

var _ Provider = (*BrevoProvider)(nil)
