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

// WebexSender delivers messages over the Webex messages REST API. The
// recipient identity is the creator's email address.
type WebexSender struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func newWebexSender(credsDir string, logger *slog.Logger) (Sender, error) {
	token, err := loadToken(credsDir, "webex.json", "bot_token", "WEBEX_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	return &WebexSender{
		token:   token,
		baseURL: "https://webexapis.com/v1",
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

func (w *WebexSender) Name() string { return "webex" }

type webexSendRequest struct {
	ToPersonEmail string `json:"toPersonEmail"`
	Text          string `json:"text"`
}

// Send posts one message addressed to the recipient's email.
func (w *WebexSender) Send(ctx context.Context, identity, message string) error {
	payload, err := json.Marshal(webexSendRequest{ToPersonEmail: identity, Text: message})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webex messages error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
