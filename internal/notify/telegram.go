package notify

import (
	"context"
	"errors"
	"fmt"

	"roombook/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the bot API the alerter needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBot connects to the Telegram bot API.
func NewBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// TelegramAlerter delivers operator alerts to a fixed set of chats.
type TelegramAlerter struct {
	bot    Sender
	chats  []int64
	logger *zerolog.Logger
}

func NewTelegramAlerter(bot Sender, chats []int64, logger *zerolog.Logger) *TelegramAlerter {
	return &TelegramAlerter{bot: bot, chats: chats, logger: logger}
}

// Alert sends text to every operator chat. Delivery continues past a failed
// chat; the failures are joined.
func (a *TelegramAlerter) Alert(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range a.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, "⚠️ roombook\n"+text)
		msg.DisableWebPagePreview = true
		if _, err := a.bot.Send(msg); err != nil {
			a.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send operator alert")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
