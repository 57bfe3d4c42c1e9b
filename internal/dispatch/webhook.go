package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/inforadar/radar/internal/radar"
)

const defaultWebhookAPI = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key="

// WebhookSender posts digest markdown to an enterprise chat webhook. The
// stored credential is either a bare key or a full webhook URL.
type WebhookSender struct {
	client  *http.Client
	baseURL string
}

func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		client:  &http.Client{Timeout: sendTimeout},
		baseURL: defaultWebhookAPI,
	}
}

type webhookMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

func (s *WebhookSender) Send(ctx context.Context, cfg radar.ChannelConfig, text string) error {
	url := cfg.WebhookKey
	if !strings.Contains(url, "key=") {
		url = s.baseURL + cfg.WebhookKey
	}

	msg := webhookMessage{MsgType: "markdown"}
	msg.Markdown.Content = text
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error encoding webhook message: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building webhook request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code from webhook: %d", resp.StatusCode)
	}

	// The provider reports failures in the body with a 200 status.
	var ack struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && ack.ErrCode != 0 {
		return fmt.Errorf("webhook rejected message: %d %s", ack.ErrCode, ack.ErrMsg)
	}

	return nil
}
