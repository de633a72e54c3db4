package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"lecturenotify/domain"
	"lecturenotify/pkg/vault"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func quietLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("usecase-tests")
	require.NoError(t, err)
	return v
}

type ownerKey struct {
	ownerType domain.OwnerType
	ownerID   int
}

type memSettings struct {
	mu        sync.Mutex
	rows      map[ownerKey]*domain.NotificationSettings
	nextID    uint
	creates   int
	updates   int
	conflicts int // Create calls that must fail with ErrSettingsConflict
	getErr    error
}

func newMemSettings() *memSettings {
	return &memSettings{rows: make(map[ownerKey]*domain.NotificationSettings)}
}

func (m *memSettings) put(s *domain.NotificationSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.rows[ownerKey{s.OwnerType, s.OwnerID}] = s.Clone()
}

func (m *memSettings) get(ownerType domain.OwnerType, ownerID int) *domain.NotificationSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[ownerKey{ownerType, ownerID}]
}

func (m *memSettings) GetByOwner(_ context.Context, ownerType domain.OwnerType, ownerID int) (*domain.NotificationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.rows[ownerKey{ownerType, ownerID}]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return s.Clone(), nil
}

func (m *memSettings) Create(_ context.Context, s *domain.NotificationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		// Another writer won the race.
		m.nextID++
		m.rows[ownerKey{s.OwnerType, s.OwnerID}] = &domain.NotificationSettings{
			ID:        m.nextID,
			OwnerType: s.OwnerType,
			OwnerID:   s.OwnerID,
			Channels:  domain.Channels{domain.ChannelPush: true},
		}
		return domain.ErrSettingsConflict
	}
	if _, ok := m.rows[ownerKey{s.OwnerType, s.OwnerID}]; ok {
		return domain.ErrSettingsConflict
	}
	m.creates++
	m.nextID++
	s.ID = m.nextID
	m.rows[ownerKey{s.OwnerType, s.OwnerID}] = s.Clone()
	return nil
}

func (m *memSettings) Update(_ context.Context, s *domain.NotificationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[ownerKey{s.OwnerType, s.OwnerID}]; !ok {
		return domain.ErrSettingsNotFound
	}
	m.updates++
	m.rows[ownerKey{s.OwnerType, s.OwnerID}] = s.Clone()
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditLog
	err     error
}

func (m *memAudit) Append(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	entry.ID = uint(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memAudit) ListByActor(_ context.Context, userID, limit int) ([]domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memAudit) all() []domain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditLog(nil), m.entries...)
}

type memLogs struct {
	mu        sync.Mutex
	rows      []domain.NotificationLog
	recordErr error
	limits    []int
}

func (m *memLogs) RecordAttempt(_ context.Context, userID, scheduleID int, ch domain.Channel) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return 0, m.recordErr
	}
	id := uint(len(m.rows) + 1)
	m.rows = append(m.rows, domain.NotificationLog{
		ID:         id,
		UserID:     userID,
		ScheduleID: scheduleID,
		Channel:    ch,
		Status:     domain.StatusPending,
	})
	return id, nil
}

func (m *memLogs) CompleteAttempt(_ context.Context, id uint, outcome domain.DeliveryOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || int(id) > len(m.rows) {
		return domain.ErrLogEntryNotFound
	}
	row := &m.rows[id-1]
	if !row.Status.CanTransition(outcome.Status) {
		return domain.ErrInvalidTransition
	}
	now := time.Now()
	row.Status = outcome.Status
	row.ProviderResponse = outcome.ProviderResponse
	row.ErrorCategory = outcome.Category
	row.Attempts++
	row.LastAttemptAt = &now
	return nil
}

func (m *memLogs) AlreadyNotified(_ context.Context, userID, scheduleID int, ch domain.Channel) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == userID && r.ScheduleID == scheduleID && r.Channel == ch && r.Status != domain.StatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLogs) ListByUser(_ context.Context, userID, limit int) ([]domain.NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	var out []domain.NotificationLog
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memLogs) byChannel() map[domain.Channel]domain.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Channel]domain.NotificationLog)
	for _, r := range m.rows {
		out[r.Channel] = r
	}
	return out
}

type fakeProvider struct {
	ch      domain.Channel
	err     error
	panics  bool
	block   bool
	mu      sync.Mutex
	sent    []string
	tested  []string
	lastCfg domain.ChannelConfig
}

func (f *fakeProvider) Channel() domain.Channel { return f.ch }

func (f *fakeProvider) Send(ctx context.Context, cfg domain.ChannelConfig, address string, _ *domain.Message) (string, error) {
	if f.panics {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return "", domain.NewProviderError(f.ch, domain.CategoryConnectivity, ctx.Err())
	}
	f.mu.Lock()
	f.sent = append(f.sent, address)
	f.lastCfg = cfg
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "ok " + string(f.ch), nil
}

func (f *fakeProvider) Test(_ context.Context, cfg domain.ChannelConfig, address string) (string, error) {
	f.mu.Lock()
	f.tested = append(f.tested, address)
	f.lastCfg = cfg
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "Test " + string(f.ch) + " sent successfully", nil
}

func (f *fakeProvider) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeLookup struct {
	mu        sync.Mutex
	schedules map[string][]domain.Schedule // keyed by date
	students  map[int][]domain.User
	prefs     map[int]domain.Channels
	prefsErr  map[int]error
	windows   []windowSegment
	block     chan struct{}
}

func (f *fakeLookup) FindSchedulesInWindow(ctx context.Context, date time.Time, start, end time.Duration) ([]domain.Schedule, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, windowSegment{date: date, start: start, end: end})
	return f.schedules[date.Format(time.DateOnly)], nil
}

func (f *fakeLookup) FindStudentsByCourse(_ context.Context, courseID int) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students[courseID], nil
}

func (f *fakeLookup) GetChannelPreferences(_ context.Context, userID int) (domain.Channels, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.prefsErr[userID]; err != nil {
		return nil, err
	}
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return domain.DefaultChannelPreferences(), nil
}

func (f *fakeLookup) segments() []windowSegment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]windowSegment(nil), f.windows...)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []*domain.DispatchRequest
	err  error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, req *domain.DispatchRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.err
}

func (r *recordingDispatcher) requests() []*domain.DispatchRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.DispatchRequest(nil), r.reqs...)
}

var errStorage = errors.New("storage unavailable")
