// Package notify forwards alert bus events to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	sender         Sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	logger         zerolog.Logger
}

// NewTelegramNotifier connects to the Bot API with the given token.
func NewTelegramNotifier(botToken, chatID string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return NewNotifier(bot, chatID, 3, time.Second)
}

// NewNotifier builds a notifier over any Sender, retrying each message with linear backoff.
func NewNotifier(sender Sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &TelegramNotifier{
		sender:         sender,
		chatID:         id,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		logger:         logger.GetForComponent("telegram_notifier"),
	}, nil
}

// Notify sends one event. It returns the last send error once retries run out.
func (n *TelegramNotifier) Notify(ctx context.Context, event types.AlertEvent) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatAlert(event))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		_, err := n.sender.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", n.maxRetries, lastErr)
}

// Run forwards events until ctx is cancelled or the channel closes.
func (n *TelegramNotifier) Run(ctx context.Context, events <-chan types.AlertEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				n.logger.Info().Msg("Alert subscription closed")
				return
			}
			if err := n.Notify(ctx, event); err != nil {
				n.logger.Error().Err(err).Str("alert_id", event.ID).Msg("Failed to deliver alert")
			}
		}
	}
}
