package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecturenotify/domain"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const settingsCacheNamespace = "notification_settings"

// cachedSettingsRepo is a read-through redis cache in front of another
// SettingsRepo. Cache errors never fail a request; they fall back to the
// inner repository. Rows hold ciphertext only, never decrypted secrets.
type cachedSettingsRepo struct {
	inner domain.SettingsRepo
	rdb   redis.UniversalClient
	ttl   time.Duration
	log   *logrus.Logger
}

func NewCachedSettingsRepository(inner domain.SettingsRepo, rdb redis.UniversalClient, ttl time.Duration, log *logrus.Logger) domain.SettingsRepo {
	return &cachedSettingsRepo{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

func settingsCacheKey(ownerType domain.OwnerType, ownerID int) string {
	return fmt.Sprintf("%s:%s:%d", settingsCacheNamespace, ownerType, ownerID)
}

func (c *cachedSettingsRepo) GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID int) (*domain.NotificationSettings, error) {
	key := settingsCacheKey(ownerType, ownerID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var settings domain.NotificationSettings
		if uerr := sonic.Unmarshal(raw, &settings); uerr == nil {
			return &settings, nil
		}
		c.log.WithField("key", key).Warn("dropping unreadable settings cache entry")
		_ = c.rdb.Del(ctx, key).Err()
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("settings cache read failed")
	}

	settings, err := c.inner.GetByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}

	if data, merr := sonic.Marshal(settings); merr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.log.WithError(serr).WithField("key", key).Warn("settings cache write failed")
		}
	}
	return settings, nil
}

func (c *cachedSettingsRepo) Create(ctx context.Context, settings *domain.NotificationSettings) error {
	if err := c.inner.Create(ctx, settings); err != nil {
		return err
	}
	c.invalidate(ctx, settings)
	return nil
}

func (c *cachedSettingsRepo) Update(ctx context.Context, settings *domain.NotificationSettings) error {
	if err := c.inner.Update(ctx, settings); err != nil {
		return err
	}
	c.invalidate(ctx, settings)
	return nil
}

func (c *cachedSettingsRepo) invalidate(ctx context.Context, settings *domain.NotificationSettings) {
	key := settingsCacheKey(settings.OwnerType, settings.OwnerID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("settings cache invalidation failed")
	}
}
