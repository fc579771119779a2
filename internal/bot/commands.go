package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"roombook/internal/metrics"
	"roombook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

const helpText = `Operator commands:
/resources - bookable resources
/reservations [YYYY-MM-DD] - reservations starting that day (default today)
/export [FROM TO] - xlsx report for FROM..TO inclusive (default this month)
/sweep - remove expired holds now`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	var err error
	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "resources":
		b.reply(chatID, b.formatResources(ctx))
	case "reservations":
		err = b.handleReservations(ctx, chatID, args)
	case "export":
		err = b.handleExport(ctx, chatID, args)
	case "sweep":
		err = b.handleSweep(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Try /help.")
		metrics.IncBotCommand("unknown", "ok")
		return
	}

	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Command failed")
		metrics.IncBotCommand(msg.Command(), "error")
		b.reply(chatID, "Error: "+err.Error())
		return
	}
	metrics.IncBotCommand(msg.Command(), "ok")
}

func (b *Bot) formatResources(ctx context.Context) string {
	resources := b.backend.ListResources(ctx, false)
	if len(resources) == 0 {
		return "No resources configured."
	}

	var sb strings.Builder
	sb.WriteString("Resources:\n")
	for _, r := range resources {
		fmt.Fprintf(&sb, "• %s: %s, %d seats, %.2f/h", r.ID, r.Name, r.Capacity, r.BaseHourlyRate)
		if r.Disabled {
			sb.WriteString(" (disabled)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) handleReservations(ctx context.Context, chatID int64, args []string) error {
	day := b.today()
	if len(args) > 0 {
		d, err := time.ParseInLocation(dateLayout, args[0], b.loc)
		if err != nil {
			return errors.New("date must be YYYY-MM-DD")
		}
		day = d
	}

	list, err := b.backend.ListReservations(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	b.reply(chatID, b.formatReservations(day, list))
	return nil
}

func (b *Bot) formatReservations(day time.Time, list []*models.Reservation) string {
	header := "Reservations for " + day.Format(dateLayout)
	if len(list) == 0 {
		return header + ": none."
	}

	type row struct {
		start time.Time
		text  string
	}
	rows := make([]row, 0, len(list))
	for _, res := range list {
		for _, li := range res.LineItems {
			rows = append(rows, row{
				start: li.Window.Start,
				text: fmt.Sprintf("%s-%s %s [%s] %s %.2f %s",
					li.Window.Start.In(b.loc).Format("15:04"), li.Window.End.In(b.loc).Format("15:04"),
					li.ResourceID, res.Status, res.ID, li.Breakdown.Total, res.Currency),
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].start.Before(rows[j].start) })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d):\n", header, len(list))
	for _, r := range rows {
		sb.WriteString(r.text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, args []string) error {
	if b.exporter == nil {
		return errors.New("exports are not configured")
	}

	today := b.today()
	from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, b.loc)
	to := from.AddDate(0, 1, 0)
	switch len(args) {
	case 0:
	case 2:
		f, err1 := time.ParseInLocation(dateLayout, args[0], b.loc)
		t, err2 := time.ParseInLocation(dateLayout, args[1], b.loc)
		if err1 != nil || err2 != nil {
			return errors.New("dates must be YYYY-MM-DD")
		}
		from, to = f, t.AddDate(0, 0, 1)
	default:
		return errors.New("usage: /export FROM TO")
	}
	if !to.After(from) {
		return errors.New("FROM must not be after TO")
	}

	b.reply(chatID, "Building report...")
	path, err := b.exporter.Export(ctx, from, to)
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("Reservations %s to %s", from.Format(dateLayout), to.AddDate(0, 0, -1).Format(dateLayout))
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("file_path", path).Msg("Report sent")
	return nil
}

func (b *Bot) handleSweep(ctx context.Context, chatID int64) error {
	n, err := b.backend.SweepExpiredHolds(ctx)
	if err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Removed %d expired holds.", n))
	return nil
}

func (b *Bot) today() time.Time {
	now := b.now().In(b.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.loc)
}
