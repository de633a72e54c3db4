package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// CanTransition reports whether a log entry may move from s to next.
// Only pending entries move, and only to a terminal state.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	return s == StatusPending && (next == StatusSent || next == StatusFailed)
}

type NotificationLog struct {
	ID               uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int            `gorm:"not null;index:idx_notifications_log_recipient" json:"user_id"`
	ScheduleID       int            `gorm:"index:idx_notifications_log_recipient" json:"schedule_id"`
	Channel          Channel        `gorm:"type:varchar(20);not null;index:idx_notifications_log_recipient" json:"channel"`
	Status           DeliveryStatus `gorm:"type:varchar(20);not null" json:"status"`
	ProviderResponse string         `gorm:"type:text" json:"provider_response"`
	ErrorCategory    ErrorCategory  `gorm:"type:varchar(40)" json:"error_category,omitempty"`
	Attempts         int            `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt    *time.Time     `json:"last_attempt_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (NotificationLog) TableName() string { return "notifications_log" }

// DeliveryOutcome is the terminal result written to a pending entry.
type DeliveryOutcome struct {
	Status           DeliveryStatus
	ProviderResponse string
	Category         ErrorCategory
}

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
)

type AuditLog struct {
	ID         uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"event_id"`
	UserID     int               `gorm:"not null;index" json:"user_id"`
	Action     AuditAction       `gorm:"type:varchar(10);not null" json:"action"`
	EntityType string            `gorm:"type:varchar(50);not null" json:"entity_type"`
	EntityID   uint              `json:"entity_id"`
	Changes    datatypes.JSONMap `gorm:"type:jsonb" json:"changes"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type DeliveryLogRepo interface {
	RecordAttempt(ctx context.Context, userID, scheduleID int, ch Channel) (uint, error)
	CompleteAttempt(ctx context.Context, id uint, outcome DeliveryOutcome) error
	AlreadyNotified(ctx context.Context, userID, scheduleID int, ch Channel) (bool, error)
	ListByUser(ctx context.Context, userID, limit int) ([]NotificationLog, error)
}

type AuditRepo interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListByActor(ctx context.Context, userID, limit int) ([]AuditLog, error)
}

type HistoryUseCase interface {
	DeliveryLogs(ctx context.Context, userID, limit int) ([]NotificationLog, error)
	AuditLogs(ctx context.Context, userID, limit int) ([]AuditLog, error)
}
