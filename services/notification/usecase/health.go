package usecase

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"lecturenotify/domain"

	"github.com/redis/go-redis/v9"
)

const (
	statusUp   = "up"
	statusDown = "down"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

func DatabaseCheck(db *sql.DB) HealthCheck {
	return db.PingContext
}

func RedisCheck(rdb redis.UniversalClient) HealthCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

type healthUC struct {
	checks  map[string]HealthCheck
	scanner domain.ScannerUseCase
	now     func() time.Time
	TimeOut time.Duration
}

// NewHealthUseCase reports the named checks. scanner may be nil when the
// reminder loop is disabled.
func NewHealthUseCase(checks map[string]HealthCheck, scanner domain.ScannerUseCase, timeOut time.Duration) domain.HealthUseCase {
	return &healthUC{
		checks:  checks,
		scanner: scanner,
		now:     time.Now,
		TimeOut: timeOut,
	}
}

func (hu *healthUC) Check(ctx context.Context) *domain.HealthReport {
	ctx, cancel := context.WithTimeout(ctx, hu.TimeOut)
	defer cancel()

	report := &domain.HealthReport{
		Status:    "ok",
		Timestamp: hu.now(),
		Services:  make(map[string]string, len(hu.checks)+1),
	}

	names := make([]string, 0, len(hu.checks))
	for name := range hu.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := hu.checks[name](ctx); err != nil {
			report.Services[name] = statusDown
			report.Status = "degraded"
			continue
		}
		report.Services[name] = statusUp
	}

	if hu.scanner != nil {
		report.Services["scanner"] = "running"
		if last := hu.scanner.LastTick(); !last.IsZero() {
			report.LastTick = &last
		}
	}
	return report
}
