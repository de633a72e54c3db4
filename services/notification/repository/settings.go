package repository

import (
	"context"
	"errors"
	"fmt"

	"lecturenotify/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type settingsRepo struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) domain.SettingsRepo {
	return &settingsRepo{
		db: db,
	}
}

func (sr *settingsRepo) GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID int) (*domain.NotificationSettings, error) {
	var settings domain.NotificationSettings
	err := sr.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("could not get notification settings for %s %d: %w", ownerType, ownerID, err)
	}
	return &settings, nil
}

func (sr *settingsRepo) Create(ctx context.Context, settings *domain.NotificationSettings) error {
	if err := sr.db.WithContext(ctx).Create(settings).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSettingsConflict
		}
		return fmt.Errorf("could not create notification settings: %w", err)
	}
	return nil
}

func (sr *settingsRepo) Update(ctx context.Context, settings *domain.NotificationSettings) error {
	res := sr.db.WithContext(ctx).
		Model(&domain.NotificationSettings{}).
		Where("id = ?", settings.ID).
		Select("channels", "email_config", "sms_config", "push_config", "calendar_config", "updated_at").
		Updates(settings)
	if res.Error != nil {
		return fmt.Errorf("could not update notification settings %d: %w", settings.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrSettingsNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
