package repository

import (
	"context"
	"fmt"
	"time"

	"lecturenotify/domain"

	"gorm.io/gorm"
)

type deliveryLogRepo struct {
	db *gorm.DB
}

func NewDeliveryLogRepository(db *gorm.DB) domain.DeliveryLogRepo {
	return &deliveryLogRepo{
		db: db,
	}
}

func (dr *deliveryLogRepo) RecordAttempt(ctx context.Context, userID, scheduleID int, ch domain.Channel) (uint, error) {
	entry := domain.NotificationLog{
		UserID:     userID,
		ScheduleID: scheduleID,
		Channel:    ch,
		Status:     domain.StatusPending,
	}
	if err := dr.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("could not record %s attempt for user %d: %w", ch, userID, err)
	}
	return entry.ID, nil
}

// CompleteAttempt moves a pending entry to its terminal state. The status
// guard lives in the WHERE clause so two writers cannot both complete it.
func (dr *deliveryLogRepo) CompleteAttempt(ctx context.Context, id uint, outcome domain.DeliveryOutcome) error {
	if !domain.StatusPending.CanTransition(outcome.Status) {
		return fmt.Errorf("%w: pending -> %s", domain.ErrInvalidTransition, outcome.Status)
	}

	now := time.Now()
	res := dr.db.WithContext(ctx).
		Model(&domain.NotificationLog{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]interface{}{
			"status":            outcome.Status,
			"provider_response": outcome.ProviderResponse,
			"error_category":    outcome.Category,
			"attempts":          gorm.Expr("attempts + 1"),
			"last_attempt_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("could not complete delivery log %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := dr.db.WithContext(ctx).Model(&domain.NotificationLog{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("could not check delivery log %d: %w", id, err)
		}
		if count == 0 {
			return domain.ErrLogEntryNotFound
		}
		return fmt.Errorf("%w: entry %d is no longer pending", domain.ErrInvalidTransition, id)
	}
	return nil
}

func (dr *deliveryLogRepo) AlreadyNotified(ctx context.Context, userID, scheduleID int, ch domain.Channel) (bool, error) {
	var count int64
	err := dr.db.WithContext(ctx).
		Model(&domain.NotificationLog{}).
		Where("user_id = ? AND schedule_id = ? AND channel = ? AND status IN ?",
			userID, scheduleID, ch, []domain.DeliveryStatus{domain.StatusPending, domain.StatusSent}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("could not check delivery log for user %d: %w", userID, err)
	}
	return count > 0, nil
}

func (dr *deliveryLogRepo) ListByUser(ctx context.Context, userID, limit int) ([]domain.NotificationLog, error) {
	var entries []domain.NotificationLog
	err := dr.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("could not list delivery logs for user %d: %w", userID, err)
	}
	return entries, nil
}
