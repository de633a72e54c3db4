package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecturenotify/domain"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// completionTimeout bounds the log write that closes an attempt. It runs
// detached from the caller's context so a cancelled tick still records
// the outcome instead of leaving the entry pending.
const completionTimeout = 5 * time.Second

type dispatcherUC struct {
	settings  domain.SettingsRepo
	logs      domain.DeliveryLogRepo
	providers map[domain.Channel]domain.ChannelProvider
	log       *logrus.Logger
	workers   int
	TimeOut   time.Duration
}

// NewDispatcher wires the providers by channel. workers bounds concurrent
// provider calls for one recipient; timeOut bounds each provider call.
func NewDispatcher(settings domain.SettingsRepo, logs domain.DeliveryLogRepo, providers []domain.ChannelProvider, log *logrus.Logger, workers int, timeOut time.Duration) domain.Dispatcher {
	byChannel := make(map[domain.Channel]domain.ChannelProvider, len(providers))
	for _, p := range providers {
		byChannel[p.Channel()] = p
	}
	if workers <= 0 {
		workers = len(domain.AllChannels)
	}
	return &dispatcherUC{
		settings:  settings,
		logs:      logs,
		providers: byChannel,
		log:       log,
		workers:   workers,
		TimeOut:   timeOut,
	}
}

type pendingDelivery struct {
	channel domain.Channel
	entryID uint
}

// Dispatch sends one reminder to every requested channel the recipient has
// enabled. It returns an error only when the request is invalid or the
// recipient's settings cannot be read. Provider failures are recorded per
// channel in the delivery log and never abort the other channels.
func (du *dispatcherUC) Dispatch(ctx context.Context, req *domain.DispatchRequest) error {
	if req.Payload == nil {
		return errors.New("dispatch payload is required")
	}
	for _, ch := range req.Channels {
		if _, err := domain.ParseChannel(string(ch)); err != nil {
			return err
		}
		if _, ok := du.providers[ch]; !ok {
			return fmt.Errorf("%w: no provider registered for %q", domain.ErrUnsupportedChannel, ch)
		}
	}

	logger := du.log.WithFields(logrus.Fields{
		"user_id":     req.UserID,
		"schedule_id": req.ScheduleID,
	})

	settings, err := du.settings.GetByOwner(ctx, domain.OwnerUser, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			dispatchSkipped.WithLabelValues("no_settings").Add(float64(len(req.Channels)))
			logger.Warn("no notification settings for recipient, skipping")
			return nil
		}
		return fmt.Errorf("could not resolve settings for user %d: %w", req.UserID, err)
	}

	var pending []pendingDelivery
	seen := make(map[domain.Channel]bool, len(req.Channels))
	for _, ch := range req.Channels {
		if seen[ch] {
			continue
		}
		seen[ch] = true

		if !settings.Channels.Enabled(ch) {
			dispatchSkipped.WithLabelValues("disabled").Inc()
			continue
		}

		if req.Dedupe {
			done, err := du.logs.AlreadyNotified(ctx, req.UserID, req.ScheduleID, ch)
			if err != nil {
				logger.WithError(err).WithField("channel", ch).Error("could not check delivery log, skipping channel")
				continue
			}
			if done {
				dispatchSkipped.WithLabelValues("already_notified").Inc()
				continue
			}
		}

		id, err := du.logs.RecordAttempt(ctx, req.UserID, req.ScheduleID, ch)
		if err != nil {
			logger.WithError(err).WithField("channel", ch).Error("could not record pending attempt, skipping channel")
			continue
		}
		pending = append(pending, pendingDelivery{channel: ch, entryID: id})
	}

	if len(pending) == 0 {
		return nil
	}

	msg := domain.ComposeReminder(req.Payload)

	var g errgroup.Group
	g.SetLimit(du.workers)
	for _, pd := range pending {
		g.Go(func() error {
			du.deliver(ctx, logger, settings, pd, msg)
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (du *dispatcherUC) deliver(ctx context.Context, logger *logrus.Entry, settings *domain.NotificationSettings, pd pendingDelivery, msg *domain.Message) {
	logger = logger.WithField("channel", pd.channel)

	resp, err := du.send(ctx, settings, pd.channel, msg)

	outcome := domain.DeliveryOutcome{Status: domain.StatusSent, ProviderResponse: resp}
	if err != nil {
		cat := domain.CategoryOf(err)
		outcome = domain.DeliveryOutcome{
			Status:           domain.StatusFailed,
			ProviderResponse: err.Error(),
			Category:         cat,
		}
		logger.WithField("category", cat).Warn("notification delivery failed")
	} else if outcome.ProviderResponse == "" {
		outcome.ProviderResponse = "sent"
	}
	deliveriesTotal.WithLabelValues(string(pd.channel), string(outcome.Status), string(outcome.Category)).Inc()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionTimeout)
	defer cancel()
	if err := du.logs.CompleteAttempt(wctx, pd.entryID, outcome); err != nil {
		logger.WithError(err).WithField("entry_id", pd.entryID).Error("could not complete delivery log entry")
	}
}

func (du *dispatcherUC) send(ctx context.Context, settings *domain.NotificationSettings, ch domain.Channel, msg *domain.Message) (resp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.ProviderError{Channel: ch, Category: domain.CategoryUnknown, Message: fmt.Sprintf("provider panic: %v", r)}
		}
	}()

	cfg, ok := settings.Config(ch)
	if !ok {
		return "", &domain.ProviderError{Channel: ch, Category: domain.CategoryConfigurationMissing, Message: fmt.Sprintf("no configuration found for %s", ch)}
	}

	address := msg.Payload.Address(ch)
	if address == "" && ch != domain.ChannelCalendar {
		return "", &domain.ProviderError{Channel: ch, Category: domain.CategoryInvalidRecipient, Message: fmt.Sprintf("recipient has no %s address", ch)}
	}

	if du.TimeOut > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, du.TimeOut)
		defer cancel()
	}

	start := time.Now()
	resp, err = du.providers[ch].Send(ctx, cfg, address, msg)
	providerDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = domain.NewProviderError(ch, domain.CategoryUnknown, err)
		}
		return "", err
	}
	return resp, nil
}
