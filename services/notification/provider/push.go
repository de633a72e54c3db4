package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"lecturenotify/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushSender is the part of *messaging.Client the push provider uses.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type PushFactory func(ctx context.Context, credentialsJSON []byte) (PushSender, error)

func defaultPush(ctx context.Context, credentialsJSON []byte) (PushSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, err
	}
	return app.Messaging(ctx)
}

// pushProvider owns one messaging client per distinct service account.
// Each client is created at most once per process; the map is keyed by a
// fingerprint of the credential so plaintext is never held as a key.
type pushProvider struct {
	vault     domain.SecretVault
	newClient PushFactory

	mu      sync.Mutex
	clients map[string]PushSender
}

func NewPushProvider(vault domain.SecretVault, newClient PushFactory) domain.ChannelProvider {
	if newClient == nil {
		newClient = defaultPush
	}
	return &pushProvider{
		vault:     vault,
		newClient: newClient,
		clients:   make(map[string]PushSender),
	}
}

func (pp *pushProvider) Channel() domain.Channel { return domain.ChannelPush }

func (pp *pushProvider) Send(ctx context.Context, cfg domain.ChannelConfig, address string, msg *domain.Message) (string, error) {
	client, err := pp.client(ctx, cfg)
	if err != nil {
		return "", err
	}
	if address == "" {
		return "", &domain.ProviderError{Channel: domain.ChannelPush, Category: domain.CategoryInvalidRecipient, Message: "recipient has no device token"}
	}

	data := map[string]string{}
	if msg.Payload != nil {
		data["courseId"] = strconv.Itoa(msg.Payload.CourseID)
		data["scheduleId"] = strconv.Itoa(msg.Payload.ScheduleID)
	}

	id, err := client.Send(ctx, &messaging.Message{
		Token: address,
		Notification: &messaging.Notification{
			Title: msg.Subject,
			Body:  msg.Short,
		},
		Data: data,
	})
	if err != nil {
		return "", providerErr(domain.ChannelPush, err)
	}
	return fmt.Sprintf("fcm message %s", id), nil
}

func (pp *pushProvider) Test(ctx context.Context, cfg domain.ChannelConfig, address string) (string, error) {
	client, err := pp.client(ctx, cfg)
	if err != nil {
		return "", err
	}
	if address == "" {
		return "", &domain.ProviderError{Channel: domain.ChannelPush, Category: domain.CategoryInvalidRecipient, Message: "device token is required"}
	}

	_, err = client.Send(ctx, &messaging.Message{
		Token: address,
		Notification: &messaging.Notification{
			Title: "Test Notification",
			Body:  "This is a test notification from the Lecture Reminder System.",
		},
	})
	if err != nil {
		return "", providerErr(domain.ChannelPush, err)
	}
	return "Test push notification sent successfully", nil
}

func (pp *pushProvider) client(ctx context.Context, cfg domain.ChannelConfig) (PushSender, error) {
	pc, ok := cfg.(*domain.PushConfig)
	if !ok || pc == nil || pc.EncryptedServiceAccountJSON == "" {
		return nil, domain.NewProviderError(domain.ChannelPush, domain.CategoryConfigurationMissing, errors.New("firebase service account is not configured"))
	}

	credentials, err := pp.vault.Decrypt(pc.EncryptedServiceAccountJSON)
	if err != nil {
		return nil, providerErr(domain.ChannelPush, err)
	}

	sum := sha256.Sum256([]byte(credentials))
	key := hex.EncodeToString(sum[:])

	pp.mu.Lock()
	defer pp.mu.Unlock()

	if c, ok := pp.clients[key]; ok {
		return c, nil
	}

	// Creating the client parses credentials only; it does not call out.
	c, err := pp.newClient(ctx, []byte(credentials))
	if err != nil {
		return nil, domain.NewProviderError(domain.ChannelPush, domain.CategoryAuth, err)
	}
	pp.clients[key] = c
	return c, nil
}
