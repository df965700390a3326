package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// DiscordSender delivers messages as Discord DMs. The recipient identity is
// the creator's Discord user id; a DM channel is opened per send.
type DiscordSender struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func newDiscordSender(credsDir string, logger *slog.Logger) (Sender, error) {
	token, err := loadToken(credsDir, "discord.json", "token", "DISCORD_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordSender{session: dg, logger: logger}, nil
}

func (d *DiscordSender) Name() string { return "discord" }

// Send opens (or reuses) the DM channel for the user and posts the message.
func (d *DiscordSender) Send(ctx context.Context, identity, message string) error {
	ch, err := d.session.UserChannelCreate(identity, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(ch.ID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}
