package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/inforadar/radar/internal/radar"
)

const defaultEmailAPI = "https://api.resend.com"

// EmailSender delivers the rendered digest document through a Resend-style
// transactional email HTTP API.
type EmailSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
	subject func() string
}

func NewEmailSender(apiKey, from string, subject func() string) *EmailSender {
	return &EmailSender{
		client:  &http.Client{Timeout: sendTimeout},
		baseURL: defaultEmailAPI,
		apiKey:  apiKey,
		from:    from,
		subject: subject,
	}
}

type emailMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *EmailSender) Send(ctx context.Context, cfg radar.ChannelConfig, text string) error {
	body, err := json.Marshal(emailMessage{
		From:    s.from,
		To:      []string{cfg.EmailAddress},
		Subject: s.subject(),
		HTML:    text,
	})
	if err != nil {
		return fmt.Errorf("error encoding email: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building email request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code from email provider: %d", resp.StatusCode)
	}

	return nil
}
