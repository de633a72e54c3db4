package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lecturenotify/domain"

	"github.com/asaskevich/govalidator"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// TwilioMessenger is the part of the Twilio REST client the sms provider uses.
type TwilioMessenger interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type TwilioFactory func(accountSID, authToken string) TwilioMessenger

func defaultTwilio(accountSID, authToken string) TwilioMessenger {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return client.Api
}

// WhatsAppSender is the part of *whatsmeow.Client the whatsapp transport uses.
type WhatsAppSender interface {
	IsConnected() bool
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

type smsProvider struct {
	vault     domain.SecretVault
	newTwilio TwilioFactory
	whatsapp  WhatsAppSender
}

// NewSMSProvider builds the sms channel. whatsapp may be nil when no
// WhatsApp session was started; owners configured for it then fail with
// configuration_missing.
func NewSMSProvider(vault domain.SecretVault, newTwilio TwilioFactory, whatsapp WhatsAppSender) domain.ChannelProvider {
	if newTwilio == nil {
		newTwilio = defaultTwilio
	}
	return &smsProvider{
		vault:     vault,
		newTwilio: newTwilio,
		whatsapp:  whatsapp,
	}
}

func (sp *smsProvider) Channel() domain.Channel { return domain.ChannelSMS }

func (sp *smsProvider) Send(ctx context.Context, cfg domain.ChannelConfig, address string, msg *domain.Message) (string, error) {
	sc, err := smsConfig(cfg)
	if err != nil {
		return "", err
	}
	return sp.deliver(ctx, sc, address, msg.Short)
}

func (sp *smsProvider) Test(ctx context.Context, cfg domain.ChannelConfig, address string) (string, error) {
	sc, err := smsConfig(cfg)
	if err != nil {
		return "", err
	}
	if _, err := sp.deliver(ctx, sc, address, "This is a test message from the Lecture Reminder System."); err != nil {
		return "", err
	}
	return "Test SMS sent successfully", nil
}

func (sp *smsProvider) deliver(ctx context.Context, sc *domain.SMSConfig, address, body string) (string, error) {
	phone := normalizePhone(address)
	if phone == "" || !govalidator.IsE164(phone) {
		return "", &domain.ProviderError{Channel: domain.ChannelSMS, Category: domain.CategoryInvalidRecipient, Message: fmt.Sprintf("invalid phone number %q", address)}
	}

	if sc.Provider == domain.SMSProviderWhatsApp {
		return sp.sendWhatsApp(ctx, phone, body)
	}
	return sp.sendTwilio(ctx, sc, phone, body)
}

func (sp *smsProvider) sendTwilio(ctx context.Context, sc *domain.SMSConfig, phone, body string) (string, error) {
	if sc.TwilioSID == "" || sc.EncryptedTwilioToken == "" || sc.PhoneNumber == "" {
		return "", &domain.ProviderError{Channel: domain.ChannelSMS, Category: domain.CategoryConfigurationMissing, Message: "twilio sid, token and phone number are required"}
	}

	token, err := sp.vault.Decrypt(sc.EncryptedTwilioToken)
	if err != nil {
		return "", providerErr(domain.ChannelSMS, err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(sc.PhoneNumber)
	params.SetBody(body)

	// The Twilio client has no context support.
	type result struct {
		resp *openapi.ApiV2010Message
		err  error
	}
	done := make(chan result, 1)
	client := sp.newTwilio(sc.TwilioSID, token)
	go func() {
		resp, err := client.CreateMessage(params)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", providerErr(domain.ChannelSMS, r.err)
		}
		sid := ""
		if r.resp != nil && r.resp.Sid != nil {
			sid = *r.resp.Sid
		}
		return fmt.Sprintf("twilio message %s", sid), nil
	case <-ctx.Done():
		return "", providerErr(domain.ChannelSMS, ctx.Err())
	}
}

func (sp *smsProvider) sendWhatsApp(ctx context.Context, phone, body string) (string, error) {
	if sp.whatsapp == nil {
		return "", &domain.ProviderError{Channel: domain.ChannelSMS, Category: domain.CategoryConfigurationMissing, Message: "whatsapp session is not running"}
	}
	if !sp.whatsapp.IsConnected() {
		return "", providerErr(domain.ChannelSMS, whatsmeow.ErrNotConnected)
	}

	jid := types.NewJID(strings.TrimPrefix(phone, "+"), types.DefaultUserServer)
	resp, err := sp.whatsapp.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &body,
	})
	if err != nil {
		return "", providerErr(domain.ChannelSMS, err)
	}
	return fmt.Sprintf("whatsapp message %s", resp.ID), nil
}

func smsConfig(cfg domain.ChannelConfig) (*domain.SMSConfig, error) {
	sc, ok := cfg.(*domain.SMSConfig)
	if !ok || sc == nil {
		return nil, domain.NewProviderError(domain.ChannelSMS, domain.CategoryConfigurationMissing, errors.New("sms config missing"))
	}
	return sc, nil
}

// normalizePhone strips formatting and returns an E.164 style "+<digits>".
func normalizePhone(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}
