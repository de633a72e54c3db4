package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecturenotify/domain"

	"github.com/sirupsen/logrus"
)

type testerUC struct {
	settings  domain.SettingsRepo
	providers map[domain.Channel]domain.ChannelProvider
	log       *logrus.Logger
	TimeOut   time.Duration
}

func NewTesterUseCase(settings domain.SettingsRepo, providers []domain.ChannelProvider, log *logrus.Logger, timeOut time.Duration) domain.TesterUseCase {
	byChannel := make(map[domain.Channel]domain.ChannelProvider, len(providers))
	for _, p := range providers {
		byChannel[p.Channel()] = p
	}
	return &testerUC{
		settings:  settings,
		providers: byChannel,
		log:       log,
		TimeOut:   timeOut,
	}
}

// TestChannel sends one test message through a single channel using the
// owner's stored config. Provider failures come back as an unsuccessful
// result with a category message; only storage errors are returned as error.
func (tu *testerUC) TestChannel(ctx context.Context, req *domain.TestRequest) (*domain.TestResult, error) {
	if req.Channel == "" {
		return &domain.TestResult{Success: false, Message: "Provider is required"}, nil
	}
	ch, err := domain.ParseChannel(string(req.Channel))
	if err != nil {
		return &domain.TestResult{Success: false, Message: "Unsupported provider"}, nil
	}

	switch {
	case ch == domain.ChannelSMS && req.Address == "":
		return &domain.TestResult{Success: false, Message: "Test phone number is required for SMS testing"}, nil
	case ch == domain.ChannelEmail && req.Address == "":
		return &domain.TestResult{Success: false, Message: "Test email address is required for email testing"}, nil
	case ch == domain.ChannelPush && req.Address == "":
		return &domain.TestResult{Success: false, Message: "Test device token is required for push notification testing"}, nil
	}

	provider, ok := tu.providers[ch]
	if !ok {
		return &domain.TestResult{Success: false, Message: "Unsupported provider"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, tu.TimeOut)
	defer cancel()

	settings, err := tu.settings.GetByOwner(ctx, req.OwnerType, req.OwnerID)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			return &domain.TestResult{Success: false, Message: "No notification settings found for this user"}, nil
		}
		return nil, err
	}

	cfg, ok := settings.Config(ch)
	if !ok {
		return &domain.TestResult{Success: false, Message: fmt.Sprintf("No configuration found for %s", ch)}, nil
	}

	resp, err := provider.Test(ctx, cfg, req.Address)
	if err != nil {
		cat := domain.CategoryOf(err)
		tu.log.WithFields(logrus.Fields{
			"owner_type": req.OwnerType,
			"owner_id":   req.OwnerID,
			"channel":    ch,
			"category":   cat,
		}).Warn("channel test failed")
		return &domain.TestResult{Success: false, Message: cat.UserMessage()}, nil
	}
	return &domain.TestResult{Success: true, Message: resp}, nil
}
