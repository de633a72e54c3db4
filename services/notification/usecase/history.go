package usecase

import (
	"context"
	"time"

	"lecturenotify/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type historyUC struct {
	logs    domain.DeliveryLogRepo
	audit   domain.AuditRepo
	TimeOut time.Duration
}

func NewHistoryUseCase(logs domain.DeliveryLogRepo, audit domain.AuditRepo, timeOut time.Duration) domain.HistoryUseCase {
	return &historyUC{
		logs:    logs,
		audit:   audit,
		TimeOut: timeOut,
	}
}

func (hu *historyUC) DeliveryLogs(ctx context.Context, userID, limit int) ([]domain.NotificationLog, error) {
	ctx, cancel := context.WithTimeout(ctx, hu.TimeOut)
	defer cancel()

	return hu.logs.ListByUser(ctx, userID, clampLimit(limit))
}

func (hu *historyUC) AuditLogs(ctx context.Context, userID, limit int) ([]domain.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, hu.TimeOut)
	defer cancel()

	return hu.audit.ListByActor(ctx, userID, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}
