package provider

import (
	"context"
	"errors"
	"fmt"

	"lecturenotify/domain"

	"github.com/asaskevich/govalidator"
	"gopkg.in/gomail.v2"
)

const (
	gmailHost = "smtp.gmail.com"
	gmailPort = 465
)

// MailDialer is the part of *gomail.Dialer the email provider uses.
type MailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// DialerFactory builds a dialer for one send. Port 465 implies implicit TLS.
type DialerFactory func(host string, port int, username, password string) MailDialer

func defaultDialer(host string, port int, username, password string) MailDialer {
	return gomail.NewDialer(host, port, username, password)
}

type emailProvider struct {
	vault     domain.SecretVault
	newDialer DialerFactory
}

func NewEmailProvider(vault domain.SecretVault, newDialer DialerFactory) domain.ChannelProvider {
	if newDialer == nil {
		newDialer = defaultDialer
	}
	return &emailProvider{
		vault:     vault,
		newDialer: newDialer,
	}
}

func (ep *emailProvider) Channel() domain.Channel { return domain.ChannelEmail }

func (ep *emailProvider) Send(ctx context.Context, cfg domain.ChannelConfig, address string, msg *domain.Message) (string, error) {
	ec, err := emailConfig(cfg)
	if err != nil {
		return "", err
	}
	if !govalidator.IsEmail(address) {
		return "", &domain.ProviderError{Channel: domain.ChannelEmail, Category: domain.CategoryInvalidRecipient, Message: fmt.Sprintf("invalid email address %q", address)}
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", fromAddress(ec), ec.FromName)
	m.SetHeader("To", address)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := ep.deliver(ctx, ec, m); err != nil {
		return "", err
	}
	return fmt.Sprintf("email accepted for %s", address), nil
}

func (ep *emailProvider) Test(ctx context.Context, cfg domain.ChannelConfig, address string) (string, error) {
	ec, err := emailConfig(cfg)
	if err != nil {
		return "", err
	}
	if !govalidator.IsEmail(address) {
		return "", &domain.ProviderError{Channel: domain.ChannelEmail, Category: domain.CategoryInvalidRecipient, Message: fmt.Sprintf("invalid email address %q", address)}
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", fromAddress(ec), ec.FromName)
	m.SetHeader("To", address)
	m.SetHeader("Subject", "Test Notification")
	m.SetBody("text/plain", "This is a test notification from the Lecture Reminder System.")

	if err := ep.deliver(ctx, ec, m); err != nil {
		return "", err
	}
	return "Test email sent successfully", nil
}

func (ep *emailProvider) deliver(ctx context.Context, ec *domain.EmailConfig, m *gomail.Message) error {
	password, err := ep.vault.Decrypt(ec.EncryptedPassword)
	if err != nil {
		return providerErr(domain.ChannelEmail, err)
	}

	host, port := ec.SMTPHost, ec.SMTPPort
	if ec.Provider == "gmail" {
		host, port = gmailHost, gmailPort
	}
	if host == "" {
		return &domain.ProviderError{Channel: domain.ChannelEmail, Category: domain.CategoryConfigurationMissing, Message: "smtp host is not configured"}
	}
	if port == 0 {
		port = 587
	}

	dialer := ep.newDialer(host, port, ec.Username, password)

	// gomail has no context support; the send keeps running after ctx is
	// done but its result is dropped.
	done := make(chan error, 1)
	go func() { done <- dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return providerErr(domain.ChannelEmail, err)
	case <-ctx.Done():
		return providerErr(domain.ChannelEmail, ctx.Err())
	}
}

func emailConfig(cfg domain.ChannelConfig) (*domain.EmailConfig, error) {
	ec, ok := cfg.(*domain.EmailConfig)
	if !ok || ec == nil {
		return nil, domain.NewProviderError(domain.ChannelEmail, domain.CategoryConfigurationMissing, errors.New("email config missing"))
	}
	return ec, nil
}

func fromAddress(ec *domain.EmailConfig) string {
	if ec.FromEmail != "" {
		return ec.FromEmail
	}
	return ec.Username
}
