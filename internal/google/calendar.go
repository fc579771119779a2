package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"roombook/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient mirrors line items onto each resource's Google calendar.
type CalendarClient struct {
	service           *calendar.Service
	defaultCalendarID string
	logger            *zerolog.Logger
}

func NewCalendarClient(ctx context.Context, credentialsFile, defaultCalendarID string, logger *zerolog.Logger) (*CalendarClient, error) {
	client, err := serviceAccountClient(ctx, credentialsFile, calendar.CalendarEventsScope)
	if err != nil {
		return nil, err
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return &CalendarClient{service: srv, defaultCalendarID: defaultCalendarID, logger: logger}, nil
}

func (c *CalendarClient) calendarFor(res *models.Resource) (string, error) {
	if res.CalendarID != "" {
		return res.CalendarID, nil
	}
	if c.defaultCalendarID != "" {
		return c.defaultCalendarID, nil
	}
	return "", fmt.Errorf("resource %s has no calendar", res.ID)
}

func (c *CalendarClient) CreateEvent(ctx context.Context, res *models.Resource, item models.LineItem, summary string) (string, error) {
	calendarID, err := c.calendarFor(res)
	if err != nil {
		return "", err
	}

	tz := res.Timezone
	if tz == "" {
		tz = "UTC"
	}
	event := &calendar.Event{
		Summary:     summary,
		Description: fmt.Sprintf("%d attendee(s), %.2f %s", item.Attendees, item.Breakdown.Total, item.Breakdown.Currency),
		Location:    res.Name,
		Start:       &calendar.EventDateTime{DateTime: item.Window.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: item.Window.End.Format(time.RFC3339), TimeZone: tz},
	}

	created, err := c.service.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}

	c.logger.Debug().Str("calendar_id", calendarID).Str("event_id", created.Id).Msg("Calendar event created")
	return created.Id, nil
}

// CancelEvent deletes an event. An event that is already gone counts as cancelled.
func (c *CalendarClient) CancelEvent(ctx context.Context, calendarID, eventID string) error {
	if calendarID == "" {
		calendarID = c.defaultCalendarID
	}
	err := c.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	return nil
}
