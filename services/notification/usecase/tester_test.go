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

func TestTestChannelMessages(t *testing.T) {
	settings := newMemSettings()
	settings.put(&domain.NotificationSettings{
		OwnerType:   domain.OwnerOrganization,
		OwnerID:     1,
		Channels:    domain.Channels{domain.ChannelEmail: true},
		EmailConfig: &domain.EmailConfig{Provider: "gmail"},
	})

	email := &fakeProvider{ch: domain.ChannelEmail}
	sms := &fakeProvider{ch: domain.ChannelSMS}
	log, _ := quietLogger()
	uc := NewTesterUseCase(settings, []domain.ChannelProvider{email, sms}, log, time.Second)

	cases := []struct {
		name    string
		req     domain.TestRequest
		success bool
		message string
	}{
		{
			name:    "missing provider",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1},
			message: "Provider is required",
		},
		{
			name:    "unknown provider",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: "carrier-pigeon"},
			message: "Unsupported provider",
		},
		{
			name:    "sms without phone",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: domain.ChannelSMS},
			message: "Test phone number is required for SMS testing",
		},
		{
			name:    "email without address",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: domain.ChannelEmail},
			message: "Test email address is required for email testing",
		},
		{
			name:    "push without token",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: domain.ChannelPush},
			message: "Test device token is required for push notification testing",
		},
		{
			name:    "known channel without provider",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: domain.ChannelCalendar},
			message: "Unsupported provider",
		},
		{
			name:    "no settings",
			req:     domain.TestRequest{OwnerType: domain.OwnerUser, OwnerID: 9, Channel: domain.ChannelEmail, Address: "a@b.co"},
			message: "No notification settings found for this user",
		},
		{
			name:    "channel not configured",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: domain.ChannelSMS, Address: "+15550001111"},
			message: "No configuration found for sms",
		},
		{
			name:    "success",
			req:     domain.TestRequest{OwnerType: domain.OwnerOrganization, OwnerID: 1, Channel: domain.ChannelEmail, Address: "a@b.co"},
			success: true,
			message: "Test email sent successfully",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := uc.TestChannel(context.Background(), &tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.success, res.Success)
			assert.Equal(t, tc.message, res.Message)
		})
	}

	assert.Equal(t, []string{"a@b.co"}, email.tested)
	assert.Empty(t, sms.tested)
}

func TestTestChannelMapsProviderFailure(t *testing.T) {
	settings := newMemSettings()
	settings.put(&domain.NotificationSettings{
		OwnerType:   domain.OwnerUser,
		OwnerID:     4,
		EmailConfig: &domain.EmailConfig{Provider: "smtp"},
	})
	email := &fakeProvider{
		ch:  domain.ChannelEmail,
		err: domain.NewProviderError(domain.ChannelEmail, domain.CategoryAuth, errors.New("535 bad credentials")),
	}
	log, hook := quietLogger()
	uc := NewTesterUseCase(settings, []domain.ChannelProvider{email}, log, time.Second)

	res, err := uc.TestChannel(context.Background(), &domain.TestRequest{
		OwnerType: domain.OwnerUser,
		OwnerID:   4,
		Channel:   domain.ChannelEmail,
		Address:   "x@y.co",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryAuth.UserMessage(), res.Message)
	assert.NotContains(t, res.Message, "535")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, domain.CategoryAuth, hook.LastEntry().Data["category"])
}

func TestTestChannelReturnsStorageErrors(t *testing.T) {
	settings := newMemSettings()
	settings.getErr = errStorage
	log, _ := quietLogger()
	uc := NewTesterUseCase(settings, []domain.ChannelProvider{&fakeProvider{ch: domain.ChannelEmail}}, log, time.Second)

	_, err := uc.TestChannel(context.Background(), &domain.TestRequest{
		OwnerType: domain.OwnerUser,
		OwnerID:   1,
		Channel:   domain.ChannelEmail,
		Address:   "x@y.co",
	})
	assert.ErrorIs(t, err, errStorage)
}
