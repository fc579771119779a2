package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"roombook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	reservationsSheet = "Reservations"
	utilizationSheet  = "Utilization"
	dayLayout         = "2006-01-02"
)

// Source supplies report data.
type Source interface {
	ListReservations(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
	ListResources(ctx context.Context, forceRefresh bool) []*models.Resource
}

// ReservationReport renders reservations in a date range as an .xlsx workbook.
type ReservationReport struct {
	source Source
	dir    string
	logger *zerolog.Logger
}

func NewReservationReport(source Source, dir string, logger *zerolog.Logger) *ReservationReport {
	return &ReservationReport{source: source, dir: dir, logger: logger}
}

var reservationColumns = []string{
	"Reservation", "Status", "User", "Resource", "Start", "End", "Hours",
	"Attendees", "Base", "Add-ons", "Fees", "Taxes", "Total", "Currency", "Calendar Event",
}

// Build assembles the workbook for reservations starting in [from, to).
// The caller closes the returned file.
func (r *ReservationReport) Build(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid report range %s - %s", from.Format(dayLayout), to.Format(dayLayout))
	}
	reservations, err := r.source.ListReservations(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("error getting reservations: %w", err)
	}
	resources := r.source.ListResources(ctx, false)

	f := excelize.NewFile()
	index, err := f.NewSheet(reservationsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := r.writeReservations(f, reservations); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.writeUtilization(f, resources, reservations, from, to); err != nil {
		f.Close()
		return nil, err
	}

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func (r *ReservationReport) writeReservations(f *excelize.File, reservations []*models.Reservation) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}
	statusStyles, err := statusStyles(f)
	if err != nil {
		return err
	}

	for i, title := range reservationColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reservationsSheet, cell, title)
	}
	last, _ := excelize.CoordinatesToCellName(len(reservationColumns), 1)
	_ = f.SetCellStyle(reservationsSheet, "A1", last, headerStyle)

	row := 2
	for _, res := range reservations {
		for _, li := range res.LineItems {
			values := []interface{}{
				res.ID,
				res.Status,
				res.UserID,
				li.ResourceID,
				li.Window.Start.UTC().Format("2006-01-02 15:04"),
				li.Window.End.UTC().Format("2006-01-02 15:04"),
				li.Window.Hours(),
				li.Attendees,
				li.Breakdown.Base,
				li.Breakdown.AddOns,
				li.Breakdown.Fees,
				li.Breakdown.Taxes,
				li.Breakdown.Total,
				res.Currency,
				li.CalendarEventID,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(reservationsSheet, cell, v)
			}
			if style, ok := statusStyles[res.Status]; ok {
				first, _ := excelize.CoordinatesToCellName(1, row)
				end, _ := excelize.CoordinatesToCellName(len(reservationColumns), row)
				_ = f.SetCellStyle(reservationsSheet, first, end, style)
			}
			row++
		}
	}

	_ = f.SetColWidth(reservationsSheet, "A", "A", 38)
	_ = f.SetColWidth(reservationsSheet, "B", "D", 14)
	_ = f.SetColWidth(reservationsSheet, "E", "F", 18)
	_ = f.SetColWidth(reservationsSheet, "O", "O", 28)
	return nil
}

func statusStyles(f *excelize.File) (map[string]int, error) {
	colors := map[string]string{
		models.StatusConfirmed: "#C6EFCE",
		models.StatusPending:   "#FFEB9C",
		models.StatusCancelled: "#FFC7CE",
	}
	styles := make(map[string]int, len(colors))
	for status, color := range colors {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating %s style: %w", status, err)
		}
		styles[status] = style
	}
	return styles, nil
}

// writeUtilization lays out booked hours per resource (rows) and day (columns).
// Cancelled reservations are excluded.
func (r *ReservationReport) writeUtilization(f *excelize.File, resources []*models.Resource, reservations []*models.Reservation, from, to time.Time) error {
	if _, err := f.NewSheet(utilizationSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	var days []string
	dayCol := make(map[string]int)
	for d := from.UTC().Truncate(24 * time.Hour); d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		dayCol[key] = len(days) + 2
		days = append(days, key)
	}

	_ = f.SetCellValue(utilizationSheet, "A1", fmt.Sprintf("Booked hours %s - %s", from.Format(dayLayout), to.Format(dayLayout)))
	for i, day := range days {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(utilizationSheet, cell, day)
	}

	hours := make(map[string]map[string]float64)
	for _, res := range reservations {
		if !res.Active() {
			continue
		}
		for _, li := range res.LineItems {
			day := li.Window.Start.UTC().Format(dayLayout)
			if hours[li.ResourceID] == nil {
				hours[li.ResourceID] = make(map[string]float64)
			}
			hours[li.ResourceID][day] += li.Window.Hours()
		}
	}

	ids := make([]string, 0, len(resources))
	names := make(map[string]string, len(resources))
	for _, res := range resources {
		ids = append(ids, res.ID)
		names[res.ID] = res.Name
	}
	for id := range hours {
		if _, ok := names[id]; !ok {
			ids = append(ids, id)
			names[id] = id
		}
	}
	sort.Strings(ids)

	for i, id := range ids {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(utilizationSheet, cell, names[id])
		for day, h := range hours[id] {
			col, ok := dayCol[day]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(utilizationSheet, cell, h)
		}
	}

	_ = f.SetColWidth(utilizationSheet, "A", "A", 25)
	if len(days) > 0 {
		lastCol, _ := excelize.ColumnNumberToName(len(days) + 1)
		_ = f.SetColWidth(utilizationSheet, "B", lastCol, 12)
		_ = f.MergeCell(utilizationSheet, "A1", lastCol+"1")
	}
	title, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(utilizationSheet, "A1", "A1", title)
	return nil
}

// Write streams the workbook to w.
func (r *ReservationReport) Write(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := r.Build(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// Export saves the workbook under the exports directory and returns its path.
func (r *ReservationReport) Export(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := r.Build(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("reservations_%s_to_%s.xlsx", from.Format(dayLayout), to.Format(dayLayout))
	filePath := filepath.Join(r.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	r.logger.Info().Str("file_path", filePath).Msg("Reservation report created")
	return filePath, nil
}
