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

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSender delivers digest text through the Telegram bot API using the
// user's own bot token and chat id.
type TelegramSender struct {
	client  *http.Client
	baseURL string
}

func NewTelegramSender() *TelegramSender {
	return &TelegramSender{
		client:  &http.Client{Timeout: sendTimeout},
		baseURL: defaultTelegramAPI,
	}
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (s *TelegramSender) Send(ctx context.Context, cfg radar.ChannelConfig, text string) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                cfg.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("error encoding telegram message: %s", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building telegram request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code from telegram: %d", resp.StatusCode)
	}

	return nil
}
