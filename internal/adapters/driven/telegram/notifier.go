// Package telegram sends link confirmations to bot users through the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

// Ensure Notifier implements the interface.
var _ driven.LinkNotifier = (*Notifier)(nil)

// ErrInvalidChatID is returned for subject ids that are not Telegram chat ids.
var ErrInvalidChatID = errors.New("subject id is not a telegram chat id")

// Config holds Bot API settings.
type Config struct {
	Token string

	// APIEndpoint overrides tgbotapi.APIEndpoint. Must contain two %s verbs
	// for the token and method.
	APIEndpoint string

	HTTPClient *http.Client
}

// Notifier delivers link confirmations as private chat messages.
// Subject ids are the numeric Telegram user ids, which double as chat ids.
type Notifier struct {
	bot *tgbotapi.BotAPI
}

// NewNotifier authenticates against the Bot API with getMe.
func NewNotifier(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return &Notifier{bot: bot}, nil
}

// Username returns the bot's username as reported by getMe.
func (n *Notifier) Username() string {
	return n.bot.Self.UserName
}

// NotifyLinked tells the subject which account is now linked.
// The Bot API client has no context support, so ctx only bounds the wait.
func (n *Notifier) NotifyLinked(ctx context.Context, mapping *domain.IdentityMapping) error {
	chatID, err := strconv.ParseInt(mapping.SubjectID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, mapping.SubjectID)
	}

	msg := tgbotapi.NewMessage(chatID, linkedText(mapping.ExternalAccountID))

	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func linkedText(account string) string {
	return fmt.Sprintf("✅ Your account is now linked to %s.\nYou can return to the chat.", account)
}
