package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeReminderForStudent(t *testing.T) {
	msg := ComposeReminder(&ReminderPayload{
		CourseTitle:   "Operating Systems",
		CourseCode:    "CS330",
		Date:          "2026-10-16",
		Time:          "14:00:00",
		Venue:         "Lab 2",
		RecipientName: "Ada",
		RecipientRole: RoleStudent,
	})

	assert.Equal(t, "Lecture Reminder: Operating Systems", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Ada,")
	assert.Contains(t, msg.Body, "This is a reminder for your upcoming lecture:")
	assert.Contains(t, msg.Body, "Course: Operating Systems (CS330)")
	assert.Contains(t, msg.Body, "Venue: Lab 2")
	assert.Contains(t, msg.Body, "Lecture Reminder System")
	assert.Equal(t, "Reminder: Operating Systems (CS330) on 2026-10-16 at 14:00:00, venue Lab 2.", msg.Short)
}

func TestComposeReminderForLecturerWithMissingCourse(t *testing.T) {
	msg := ComposeReminder(&ReminderPayload{RecipientName: "Alan", RecipientRole: RoleLecturer})

	assert.Contains(t, msg.Body, "This is a reminder for your lecture:")
	assert.Contains(t, msg.Body, "Course: Unknown Course (Unknown Code)")
	assert.Equal(t, "Lecture Reminder: Unknown Course", msg.Subject)
}

func TestPayloadAddress(t *testing.T) {
	p := &ReminderPayload{RecipientEmail: "a@b.co", RecipientPhone: "+1555", DeviceToken: "tok"}
	assert.Equal(t, "a@b.co", p.Address(ChannelEmail))
	assert.Equal(t, "a@b.co", p.Address(ChannelCalendar))
	assert.Equal(t, "+1555", p.Address(ChannelSMS))
	assert.Equal(t, "tok", p.Address(ChannelPush))
	assert.Empty(t, p.Address("fax"))
}

func TestDeliveryStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusSent))
	assert.True(t, StatusPending.CanTransition(StatusFailed))
	assert.False(t, StatusPending.CanTransition(StatusPending))
	assert.False(t, StatusSent.CanTransition(StatusFailed))
	assert.False(t, StatusFailed.CanTransition(StatusSent))
}

func TestParseChannelAndOwnerType(t *testing.T) {
	ch, err := ParseChannel("SMS")
	require.NoError(t, err)
	assert.Equal(t, ChannelSMS, ch)

	_, err = ParseChannel("fax")
	assert.ErrorIs(t, err, ErrUnsupportedChannel)

	ot, err := ParseOwnerType("")
	require.NoError(t, err)
	assert.Equal(t, OwnerUser, ot)

	_, err = ParseOwnerType("team")
	assert.ErrorIs(t, err, ErrInvalidOwnerType)
}

func TestCanAccessOwner(t *testing.T) {
	admin := &Claims{UserID: 1, Role: RoleSuperAdmin}
	student := &Claims{UserID: 12, Role: RoleStudent}

	assert.True(t, admin.CanAccessOwner(OwnerOrganization, 1))
	assert.True(t, admin.CanAccessOwner(OwnerUser, 99))
	assert.True(t, student.CanAccessOwner(OwnerUser, 12))
	assert.False(t, student.CanAccessOwner(OwnerUser, 13))
	assert.False(t, student.CanAccessOwner(OwnerOrganization, 12))
}

func TestCategoryOf(t *testing.T) {
	pe := NewProviderError(ChannelEmail, CategoryAuth, errors.New("535"))
	wrapped := fmt.Errorf("send failed: %w", pe)

	assert.Equal(t, CategoryAuth, CategoryOf(wrapped))
	assert.Equal(t, CategoryUnknown, CategoryOf(errors.New("plain")))
	assert.Equal(t, "email: auth_error: 535", pe.Error())
	assert.Equal(t, categoryMessages[CategoryUnknown], ErrorCategory("bogus").UserMessage())
}

func TestSettingsCloneIsDeep(t *testing.T) {
	s := &NotificationSettings{
		Channels:    Channels{ChannelEmail: true},
		EmailConfig: &EmailConfig{SMTPHost: "a"},
	}
	c := s.Clone()
	c.Channels[ChannelEmail] = false
	c.EmailConfig.SMTPHost = "b"

	assert.True(t, s.Channels.Enabled(ChannelEmail))
	assert.Equal(t, "a", s.EmailConfig.SMTPHost)

	_, ok := s.Config(ChannelSMS)
	assert.False(t, ok)
	cfg, ok := s.Config(ChannelEmail)
	require.True(t, ok)
	assert.Equal(t, ChannelEmail, cfg.Channel())
}

func TestChannelPreferencesDefaults(t *testing.T) {
	var p *ChannelPreferences
	assert.Equal(t, DefaultChannelPreferences(), p.ToChannels())

	p = &ChannelPreferences{PushEnabled: true}
	ch := p.ToChannels()
	assert.True(t, ch.Enabled(ChannelPush))
	assert.False(t, ch.Enabled(ChannelEmail))
}
