// Package bot runs the operator console: a Telegram bot that answers a fixed
// set of chats with catalog listings, daily schedules and report exports.
package bot

import (
	"context"
	"time"

	"roombook/internal/metrics"
	"roombook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramAPI is the subset of *tgbotapi.BotAPI the console uses.
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type botAPI struct {
	*tgbotapi.BotAPI
}

func (b botAPI) GetSelf() tgbotapi.User {
	return b.Self
}

// Wrap adapts a connected bot to TelegramAPI.
func Wrap(api *tgbotapi.BotAPI) TelegramAPI {
	return botAPI{BotAPI: api}
}

type Backend interface {
	ListResources(ctx context.Context, forceRefresh bool) []*models.Resource
	ListReservations(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
	SweepExpiredHolds(ctx context.Context) (int64, error)
}

// Exporter writes a workbook for [from, to) and returns its path.
type Exporter interface {
	Export(ctx context.Context, from, to time.Time) (string, error)
}

type Bot struct {
	api       TelegramAPI
	backend   Backend
	exporter  Exporter
	operators map[int64]struct{}
	loc       *time.Location
	now       func() time.Time
	logger    *zerolog.Logger
}

// New builds the console. Only chats listed in operators get answers; a nil
// loc means UTC.
func New(api TelegramAPI, backend Backend, exporter Exporter, operators []int64, loc *time.Location, logger *zerolog.Logger) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	ops := make(map[int64]struct{}, len(operators))
	for _, id := range operators {
		ops[id] = struct{}{}
	}
	return &Bot{
		api:       api,
		backend:   backend,
		exporter:  exporter,
		operators: ops,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// Start consumes updates until ctx is cancelled or the channel closes.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.api.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() { metrics.ObserveBotUpdate(time.Since(start).Seconds()) }()

	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().
		Str("request_id", uuid.New().String()).
		Int64("chat_id", msg.Chat.ID).
		Str("command", msg.Command()).
		Logger()
	updateCtx = l.WithContext(updateCtx)

	if _, ok := b.operators[msg.Chat.ID]; !ok {
		l.Warn().Msg("Command from unknown chat ignored")
		metrics.IncBotCommand(msg.Command(), "denied")
		return
	}

	b.withRecovery(msg.Chat.ID, func() {
		b.handleCommand(updateCtx, msg)
	})
}

func (b *Bot) withRecovery(chatID int64, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBotCommand("panic", "error")
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
			b.reply(chatID, "Internal error, see logs.")
		}
	}()
	handler()
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
