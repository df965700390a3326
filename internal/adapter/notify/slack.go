package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
)

// SlackSender delivers messages as Slack DMs. The recipient identity may be
// an email address (resolved to a user id) or a Slack user/channel id.
type SlackSender struct {
	api    *slack.Client
	logger *slog.Logger
}

func newSlackSender(credsDir string, logger *slog.Logger) (Sender, error) {
	token, err := loadToken(credsDir, "slack.json", "bot_token", "SLACK_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	return &SlackSender{api: slack.New(token), logger: logger}, nil
}

func (s *SlackSender) Name() string { return "slack" }

// Send resolves the recipient and posts one message.
func (s *SlackSender) Send(ctx context.Context, identity, message string) error {
	target := identity
	if strings.Contains(identity, "@") {
		user, err := s.api.GetUserByEmailContext(ctx, identity)
		if err != nil {
			return fmt.Errorf("lookup user by email: %w", err)
		}
		target = user.ID
	}

	_, _, err := s.api.PostMessageContext(ctx, target, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}
