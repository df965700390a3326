package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TelegramSender delivers messages over the Telegram Bot API. The recipient
// identity is the numeric chat id recorded when the job was scheduled.
type TelegramSender struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func newTelegramSender(credsDir string, logger *slog.Logger) (Sender, error) {
	token, err := loadToken(credsDir, "telegram.json", "token", "TELEGRAM_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	return &TelegramSender{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

type telegramSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramSendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send posts one sendMessage call for the chat id.
func (t *TelegramSender) Send(ctx context.Context, identity, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	payload, err := json.Marshal(telegramSendRequest{ChatID: identity, Text: message})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage error %d: %s", resp.StatusCode, string(body))
	}

	var result telegramSendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API returned ok=false: %s", result.Description)
	}
	return nil
}
