package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type OwnerType string

const (
	OwnerOrganization OwnerType = "organization"
	OwnerUser         OwnerType = "user"
)

func ParseOwnerType(v string) (OwnerType, error) {
	switch OwnerType(strings.ToLower(strings.TrimSpace(v))) {
	case OwnerOrganization:
		return OwnerOrganization, nil
	case OwnerUser, "":
		return OwnerUser, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOwnerType, v)
}

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelCalendar Channel = "calendar"
)

// AllChannels lists every channel kind in a stable order.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelCalendar}

func ParseChannel(v string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range AllChannels {
		if ch == known {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, v)
}

// Channels maps a channel to its enabled flag. A missing key means disabled.
type Channels map[Channel]bool

func (c Channels) Enabled(ch Channel) bool {
	return c != nil && c[ch]
}

func (c Channels) Clone() Channels {
	out := make(Channels, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ChannelConfig is implemented by each per-channel provider config.
type ChannelConfig interface {
	Channel() Channel
}

type EmailConfig struct {
	Provider          string `json:"provider,omitempty" valid:"in(gmail|smtp|custom)~email provider must be gmail, smtp or custom"`
	SMTPHost          string `json:"smtp_host,omitempty"`
	SMTPPort          int    `json:"smtp_port,omitempty"`
	Username          string `json:"username,omitempty"`
	Password          string `json:"password,omitempty"`
	EncryptedPassword string `json:"encrypted_password,omitempty"`
	FromName          string `json:"from_name,omitempty"`
	FromEmail         string `json:"from_email,omitempty" valid:"email~from_email must be a valid email"`
}

func (*EmailConfig) Channel() Channel { return ChannelEmail }

const (
	SMSProviderTwilio   = "twilio"
	SMSProviderWhatsApp = "whatsapp"
)

type SMSConfig struct {
	Provider             string `json:"provider,omitempty" valid:"in(twilio|whatsapp)~sms provider must be twilio or whatsapp"`
	TwilioSID            string `json:"twilio_sid,omitempty"`
	TwilioToken          string `json:"twilio_token,omitempty"`
	EncryptedTwilioToken string `json:"encrypted_twilio_token,omitempty"`
	PhoneNumber          string `json:"phone_number,omitempty"`
}

func (*SMSConfig) Channel() Channel { return ChannelSMS }

type PushConfig struct {
	ServiceAccountJSON          string `json:"firebase_service_account_json,omitempty"`
	EncryptedServiceAccountJSON string `json:"encrypted_firebase_service_account_json,omitempty"`
}

func (*PushConfig) Channel() Channel { return ChannelPush }

type CalendarConfig struct {
	ClientID              string `json:"google_client_id,omitempty"`
	ClientSecret          string `json:"google_client_secret,omitempty"`
	EncryptedClientSecret string `json:"encrypted_google_client_secret,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	EncryptedRefreshToken string `json:"encrypted_refresh_token,omitempty"`
	RedirectURI           string `json:"redirect_uri,omitempty"`
}

func (*CalendarConfig) Channel() Channel { return ChannelCalendar }

type NotificationSettings struct {
	ID             uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerType      OwnerType       `gorm:"type:varchar(20);not null;uniqueIndex:idx_notification_settings_owner" json:"owner_type"`
	OwnerID        int             `gorm:"not null;uniqueIndex:idx_notification_settings_owner" json:"owner_id"`
	Channels       Channels        `gorm:"type:jsonb;serializer:json;not null" json:"channels"`
	EmailConfig    *EmailConfig    `gorm:"column:email_config;type:jsonb;serializer:json" json:"email_config,omitempty"`
	SMSConfig      *SMSConfig      `gorm:"column:sms_config;type:jsonb;serializer:json" json:"sms_config,omitempty"`
	PushConfig     *PushConfig     `gorm:"column:push_config;type:jsonb;serializer:json" json:"push_config,omitempty"`
	CalendarConfig *CalendarConfig `gorm:"column:calendar_config;type:jsonb;serializer:json" json:"calendar_config,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationSettings) TableName() string { return "notification_settings" }

// Config returns the stored config for ch, or false when the owner never configured it.
func (s *NotificationSettings) Config(ch Channel) (ChannelConfig, bool) {
	switch ch {
	case ChannelEmail:
		if s.EmailConfig != nil {
			return s.EmailConfig, true
		}
	case ChannelSMS:
		if s.SMSConfig != nil {
			return s.SMSConfig, true
		}
	case ChannelPush:
		if s.PushConfig != nil {
			return s.PushConfig, true
		}
	case ChannelCalendar:
		if s.CalendarConfig != nil {
			return s.CalendarConfig, true
		}
	}
	return nil, false
}

// Clone returns a deep copy so callers can mutate it without touching cached rows.
func (s *NotificationSettings) Clone() *NotificationSettings {
	out := *s
	out.Channels = s.Channels.Clone()
	if s.EmailConfig != nil {
		c := *s.EmailConfig
		out.EmailConfig = &c
	}
	if s.SMSConfig != nil {
		c := *s.SMSConfig
		out.SMSConfig = &c
	}
	if s.PushConfig != nil {
		c := *s.PushConfig
		out.PushConfig = &c
	}
	if s.CalendarConfig != nil {
		c := *s.CalendarConfig
		out.CalendarConfig = &c
	}
	return &out
}

// SettingsPatch is the body of a settings update. Nil configs and absent
// channel keys leave the stored values untouched.
type SettingsPatch struct {
	OwnerType      OwnerType       `json:"owner_type" valid:"in(organization|user)~owner_type must be organization or user"`
	OwnerID        int             `json:"owner_id" valid:"required~owner_id is required"`
	Channels       Channels        `json:"channels" valid:"-"`
	EmailConfig    *EmailConfig    `json:"email_config,omitempty"`
	SMSConfig      *SMSConfig      `json:"sms_config,omitempty"`
	PushConfig     *PushConfig     `json:"push_config,omitempty"`
	CalendarConfig *CalendarConfig `json:"calendar_config,omitempty"`
}

type SettingsRepo interface {
	GetByOwner(ctx context.Context, ownerType OwnerType, ownerID int) (*NotificationSettings, error)
	Create(ctx context.Context, settings *NotificationSettings) error
	Update(ctx context.Context, settings *NotificationSettings) error
}

type SettingsUseCase interface {
	GetSettings(ctx context.Context, ownerType OwnerType, ownerID int) (*NotificationSettings, error)
	UpsertSettings(ctx context.Context, patch *SettingsPatch, actorID int) (*NotificationSettings, error)
	MaskedView(settings *NotificationSettings) *NotificationSettings
}

// SecretVault encrypts channel credentials at rest.
type SecretVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
