package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lecturenotify/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	primaryCalendar = "primary"
	eventDuration   = time.Hour
)

// CalendarClient is the slice of the Calendar API the provider uses.
type CalendarClient interface {
	InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
	GetCalendar(ctx context.Context, calendarID string) (*calendar.CalendarListEntry, error)
}

type CalendarFactory func(ctx context.Context, conf *oauth2.Config, refreshToken string) (CalendarClient, error)

type googleCalendar struct {
	svc *calendar.Service
}

func defaultCalendar(ctx context.Context, conf *oauth2.Config, refreshToken string) (CalendarClient, error) {
	// The token source outlives this call, so it must not inherit the
	// per-send deadline.
	ts := conf.TokenSource(context.WithoutCancel(ctx), &oauth2.Token{RefreshToken: refreshToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &googleCalendar{svc: svc}, nil
}

func (g *googleCalendar) InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return g.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
}

func (g *googleCalendar) GetCalendar(ctx context.Context, calendarID string) (*calendar.CalendarListEntry, error) {
	return g.svc.CalendarList.Get(calendarID).Context(ctx).Do()
}

type calendarProvider struct {
	vault     domain.SecretVault
	newClient CalendarFactory
	location  *time.Location
}

// NewCalendarProvider builds the calendar channel. Schedule wall-clock
// times are interpreted in loc.
func NewCalendarProvider(vault domain.SecretVault, newClient CalendarFactory, loc *time.Location) domain.ChannelProvider {
	if newClient == nil {
		newClient = defaultCalendar
	}
	if loc == nil {
		loc = time.Local
	}
	return &calendarProvider{
		vault:     vault,
		newClient: newClient,
		location:  loc,
	}
}

func (cp *calendarProvider) Channel() domain.Channel { return domain.ChannelCalendar }

func (cp *calendarProvider) Send(ctx context.Context, cfg domain.ChannelConfig, address string, msg *domain.Message) (string, error) {
	if msg.Payload == nil {
		return "", &domain.ProviderError{Channel: domain.ChannelCalendar, Category: domain.CategoryUnknown, Message: "reminder payload is missing"}
	}
	start, err := eventStart(msg.Payload.Date, msg.Payload.Time, cp.location)
	if err != nil {
		return "", domain.NewProviderError(domain.ChannelCalendar, domain.CategoryUnknown, err)
	}

	client, err := cp.client(ctx, cfg)
	if err != nil {
		return "", err
	}

	ev := &calendar.Event{
		Summary:     msg.Subject,
		Description: msg.Body,
		Location:    msg.Payload.Venue,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: cp.location.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(eventDuration).Format(time.RFC3339),
			TimeZone: cp.location.String(),
		},
	}
	if address != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: address}}
	}

	created, err := client.InsertEvent(ctx, primaryCalendar, ev)
	if err != nil {
		return "", providerErr(domain.ChannelCalendar, err)
	}
	return fmt.Sprintf("calendar event %s", created.Id), nil
}

// Test reads the primary calendar, so it proves the credentials without
// creating anything.
func (cp *calendarProvider) Test(ctx context.Context, cfg domain.ChannelConfig, _ string) (string, error) {
	client, err := cp.client(ctx, cfg)
	if err != nil {
		return "", err
	}
	entry, err := client.GetCalendar(ctx, primaryCalendar)
	if err != nil {
		return "", providerErr(domain.ChannelCalendar, err)
	}
	return fmt.Sprintf("Calendar access verified for %s", entry.Summary), nil
}

func (cp *calendarProvider) client(ctx context.Context, cfg domain.ChannelConfig) (CalendarClient, error) {
	cc, ok := cfg.(*domain.CalendarConfig)
	if !ok || cc == nil || cc.ClientID == "" || cc.EncryptedRefreshToken == "" {
		return nil, domain.NewProviderError(domain.ChannelCalendar, domain.CategoryConfigurationMissing, errors.New("google client id and refresh token are required"))
	}

	secret, err := cp.vault.Decrypt(cc.EncryptedClientSecret)
	if err != nil {
		return nil, providerErr(domain.ChannelCalendar, err)
	}
	refresh, err := cp.vault.Decrypt(cc.EncryptedRefreshToken)
	if err != nil {
		return nil, providerErr(domain.ChannelCalendar, err)
	}

	conf := &oauth2.Config{
		ClientID:     cc.ClientID,
		ClientSecret: secret,
		RedirectURL:  cc.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
	client, err := cp.newClient(ctx, conf, refresh)
	if err != nil {
		return nil, providerErr(domain.ChannelCalendar, err)
	}
	return client, nil
}

// eventStart combines the schedule's date and wall-clock time.
func eventStart(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	if len(date) > len(time.DateOnly) {
		date = date[:len(time.DateOnly)]
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.ParseInLocation(time.DateOnly+" "+layout, date+" "+clock, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse schedule time %q %q", date, clock)
}
