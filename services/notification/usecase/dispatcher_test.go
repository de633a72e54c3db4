package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"lecturenotify/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFixture struct {
	settings  *memSettings
	logs      *memLogs
	email     *fakeProvider
	sms       *fakeProvider
	push      *fakeProvider
	calendar  *fakeProvider
	providers []domain.ChannelProvider
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		settings: newMemSettings(),
		logs:     &memLogs{},
		email:    &fakeProvider{ch: domain.ChannelEmail},
		sms:      &fakeProvider{ch: domain.ChannelSMS},
		push:     &fakeProvider{ch: domain.ChannelPush},
		calendar: &fakeProvider{ch: domain.ChannelCalendar},
	}
	f.providers = []domain.ChannelProvider{f.email, f.sms, f.push, f.calendar}
	return f
}

func (f *dispatchFixture) dispatcher(timeOut time.Duration) domain.Dispatcher {
	log, _ := quietLogger()
	return NewDispatcher(f.settings, f.logs, f.providers, log, 2, timeOut)
}

func (f *dispatchFixture) seedUser(userID int, channels domain.Channels) {
	f.settings.put(&domain.NotificationSettings{
		OwnerType:      domain.OwnerUser,
		OwnerID:        userID,
		Channels:       channels,
		EmailConfig:    &domain.EmailConfig{Provider: "smtp", SMTPHost: "smtp.example.com"},
		SMSConfig:      &domain.SMSConfig{Provider: domain.SMSProviderTwilio, TwilioSID: "AC1"},
		PushConfig:     &domain.PushConfig{EncryptedServiceAccountJSON: "x"},
		CalendarConfig: &domain.CalendarConfig{ClientID: "c"},
	})
}

func reminderFor(userID int) *domain.DispatchRequest {
	return &domain.DispatchRequest{
		UserID:     userID,
		ScheduleID: 42,
		Channels:   []domain.Channel{domain.ChannelEmail, domain.ChannelSMS},
		Payload: &domain.ReminderPayload{
			ScheduleID:     42,
			CourseTitle:    "Compilers",
			CourseCode:     "CS420",
			Date:           "2026-10-16",
			Time:           "10:00:00",
			Venue:          "Room 3",
			RecipientName:  "Grace",
			RecipientEmail: "grace@example.com",
			RecipientPhone: "+15550002222",
			DeviceToken:    "tok",
		},
	}
}

func TestDispatchRecordsEachChannelIndependently(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true, domain.ChannelSMS: true})
	f.sms.err = domain.NewProviderError(domain.ChannelSMS, domain.CategoryAuth, errors.New("bad token"))

	err := f.dispatcher(time.Second).Dispatch(context.Background(), reminderFor(1))
	require.NoError(t, err)

	rows := f.logs.byChannel()
	require.Len(t, rows, 2)

	assert.Equal(t, domain.StatusSent, rows[domain.ChannelEmail].Status)
	assert.Equal(t, 1, rows[domain.ChannelEmail].Attempts)
	assert.Empty(t, rows[domain.ChannelEmail].ErrorCategory)

	assert.Equal(t, domain.StatusFailed, rows[domain.ChannelSMS].Status)
	assert.Equal(t, domain.CategoryAuth, rows[domain.ChannelSMS].ErrorCategory)
	assert.Contains(t, rows[domain.ChannelSMS].ProviderResponse, "bad token")
	assert.NotNil(t, rows[domain.ChannelSMS].LastAttemptAt)

	assert.Equal(t, []string{"grace@example.com"}, f.email.sent)
	assert.Equal(t, []string{"+15550002222"}, f.sms.sent)
}

func TestDispatchOnlyUsesEnabledChannels(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true, domain.ChannelSMS: false})

	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), reminderFor(1)))

	assert.Equal(t, 1, f.email.sends())
	assert.Zero(t, f.sms.sends())
	assert.Len(t, f.logs.byChannel(), 1)
}

func TestDispatchWithoutSettingsIsNoop(t *testing.T) {
	f := newDispatchFixture()

	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), reminderFor(77)))

	assert.Zero(t, f.email.sends())
	assert.Zero(t, f.sms.sends())
	assert.Empty(t, f.logs.byChannel())
}

func TestDispatchRejectsUnsupportedChannelBeforeSending(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.DefaultChannelPreferences())

	req := reminderFor(1)
	req.Channels = []domain.Channel{domain.ChannelEmail, "pager"}

	err := f.dispatcher(time.Second).Dispatch(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrUnsupportedChannel)
	assert.Zero(t, f.email.sends())
	assert.Empty(t, f.logs.byChannel())
}

func TestDispatchRejectsChannelWithoutProvider(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.DefaultChannelPreferences())
	f.providers = []domain.ChannelProvider{f.email}

	req := reminderFor(1)
	err := f.dispatcher(time.Second).Dispatch(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrUnsupportedChannel)
	assert.Zero(t, f.email.sends())
}

func TestDispatchReturnsSettingsLookupFailure(t *testing.T) {
	f := newDispatchFixture()
	f.settings.getErr = errStorage

	err := f.dispatcher(time.Second).Dispatch(context.Background(), reminderFor(1))
	assert.ErrorIs(t, err, errStorage)
}

func TestDispatchMissingConfigAndAddress(t *testing.T) {
	f := newDispatchFixture()
	f.settings.put(&domain.NotificationSettings{
		OwnerType: domain.OwnerUser,
		OwnerID:   2,
		Channels:  domain.Channels{domain.ChannelEmail: true, domain.ChannelPush: true},
		PushConfig: &domain.PushConfig{
			EncryptedServiceAccountJSON: "x",
		},
	})

	req := reminderFor(2)
	req.Channels = []domain.Channel{domain.ChannelEmail, domain.ChannelPush}
	req.Payload.DeviceToken = ""

	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), req))

	rows := f.logs.byChannel()
	assert.Equal(t, domain.CategoryConfigurationMissing, rows[domain.ChannelEmail].ErrorCategory)
	assert.Equal(t, domain.CategoryInvalidRecipient, rows[domain.ChannelPush].ErrorCategory)
	assert.Zero(t, f.email.sends())
	assert.Zero(t, f.push.sends())
}

func TestDispatchRecoversProviderPanic(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true, domain.ChannelSMS: true})
	f.email.panics = true

	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), reminderFor(1)))

	rows := f.logs.byChannel()
	assert.Equal(t, domain.StatusFailed, rows[domain.ChannelEmail].Status)
	assert.Equal(t, domain.CategoryUnknown, rows[domain.ChannelEmail].ErrorCategory)
	assert.Equal(t, domain.StatusSent, rows[domain.ChannelSMS].Status)
}

func TestDispatchWrapsPlainProviderErrors(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true})
	f.email.err = errors.New("something odd")

	req := reminderFor(1)
	req.Channels = []domain.Channel{domain.ChannelEmail}
	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), req))

	assert.Equal(t, domain.CategoryUnknown, f.logs.byChannel()[domain.ChannelEmail].ErrorCategory)
}

func TestDispatchCompletesEntryWhenProviderTimesOut(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelSMS: true})
	f.sms.block = true

	req := reminderFor(1)
	req.Channels = []domain.Channel{domain.ChannelSMS}
	require.NoError(t, f.dispatcher(20*time.Millisecond).Dispatch(context.Background(), req))

	row := f.logs.byChannel()[domain.ChannelSMS]
	assert.Equal(t, domain.StatusFailed, row.Status)
	assert.Equal(t, domain.CategoryConnectivity, row.ErrorCategory)
}

func TestDispatchDedupeSkipsAlreadyNotified(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true, domain.ChannelSMS: true})
	d := f.dispatcher(time.Second)

	req := reminderFor(1)
	req.Dedupe = true
	require.NoError(t, d.Dispatch(context.Background(), req))
	require.NoError(t, d.Dispatch(context.Background(), req))

	assert.Equal(t, 1, f.email.sends())
	assert.Equal(t, 1, f.sms.sends())

	// Without dedupe a manual send goes out again.
	req.Dedupe = false
	require.NoError(t, d.Dispatch(context.Background(), req))
	assert.Equal(t, 2, f.email.sends())
}

func TestDispatchDuplicateChannelsSendOnce(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true})

	req := reminderFor(1)
	req.Channels = []domain.Channel{domain.ChannelEmail, domain.ChannelEmail}
	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), req))

	assert.Equal(t, 1, f.email.sends())
}

func TestDispatchRecordFailureSkipsChannel(t *testing.T) {
	f := newDispatchFixture()
	f.seedUser(1, domain.Channels{domain.ChannelEmail: true})
	f.logs.recordErr = errStorage

	require.NoError(t, f.dispatcher(time.Second).Dispatch(context.Background(), reminderFor(1)))
	assert.Zero(t, f.email.sends())
}
