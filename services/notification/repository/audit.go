package repository

import (
	"context"
	"fmt"

	"lecturenotify/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) domain.AuditRepo {
	return &auditRepo{
		db: db,
	}
}

func (ar *auditRepo) Append(ctx context.Context, entry *domain.AuditLog) error {
	if entry.EventID == uuid.Nil {
		entry.EventID = uuid.New()
	}
	if err := ar.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("could not append audit entry %s: %w", entry.EventID, err)
	}
	return nil
}

func (ar *auditRepo) ListByActor(ctx context.Context, userID, limit int) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	err := ar.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("could not list audit logs for user %d: %w", userID, err)
	}
	return entries, nil
}
