package google

import (
	"context"
	"fmt"
	"time"

	"roombook/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ledgerHeader = []interface{}{
	"Reservation ID", "Status", "User", "Resource", "Start", "End",
	"Attendees", "Line Total", "Currency", "Hold ID", "Payment Session", "Calendar Event", "Recorded At",
}

// SheetsLedger appends confirmed reservations to a spreadsheet for accounting.
type SheetsLedger struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger
	now           func() time.Time
}

func NewSheetsLedger(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsLedger, error) {
	client, err := serviceAccountClient(ctx, credentialsFile, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsLedger(srv, spreadsheetID, sheetName, logger), nil
}

func newSheetsLedger(srv *sheets.Service, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsLedger {
	if sheetName == "" {
		sheetName = "Reservations"
	}
	return &SheetsLedger{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		now:           time.Now,
	}
}

// TestConnection reads the header cell.
func (l *SheetsLedger) TestConnection(ctx context.Context) error {
	_, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, l.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles to the first row.
func (l *SheetsLedger) EnsureHeader(ctx context.Context) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{ledgerHeader}}
	_, err := l.service.Spreadsheets.Values.Update(l.spreadsheetID, l.sheetName+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	return nil
}

func (l *SheetsLedger) rows(r *models.Reservation) [][]interface{} {
	recorded := l.now().UTC().Format(time.RFC3339)
	rows := make([][]interface{}, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		rows = append(rows, []interface{}{
			r.ID,
			r.Status,
			r.UserID,
			li.ResourceID,
			li.Window.Start.UTC().Format(time.RFC3339),
			li.Window.End.UTC().Format(time.RFC3339),
			li.Attendees,
			li.Breakdown.Total,
			r.Currency,
			r.HoldID,
			r.PaymentSessionID,
			li.CalendarEventID,
			recorded,
		})
	}
	return rows
}

// AppendReservation writes one row per line item.
func (l *SheetsLedger) AppendReservation(ctx context.Context, r *models.Reservation) (string, error) {
	vr := &sheets.ValueRange{Values: l.rows(r)}
	resp, err := l.service.Spreadsheets.Values.Append(l.spreadsheetID, l.sheetName+"!A:M", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append reservation %s: %w", r.ID, err)
	}

	var updated string
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	l.logger.Debug().Str("reservation_id", r.ID).Str("range", updated).Msg("Reservation appended to ledger")
	return updated, nil
}
