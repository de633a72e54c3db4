package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lecturenotify/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const endOfDay = 23*time.Hour + 59*time.Minute + 59*time.Second

type ScannerConfig struct {
	Interval    time.Duration
	Window      time.Duration
	TickTimeout time.Duration
	Workers     int
	Location    *time.Location
	// Now is overridable in tests.
	Now func() time.Time
}

type reminderScanner struct {
	lookup     domain.ScheduleLookup
	dispatcher domain.Dispatcher
	log        *logrus.Logger
	cfg        ScannerConfig

	// runMu is held for the whole tick; a tick that finds it taken is skipped.
	runMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastTick atomic.Int64
}

func NewReminderScanner(lookup domain.ScheduleLookup, dispatcher domain.Dispatcher, log *logrus.Logger, cfg ScannerConfig) domain.ScannerUseCase {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = cfg.Interval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &reminderScanner{
		lookup:     lookup,
		dispatcher: dispatcher,
		log:        log,
		cfg:        cfg,
	}
}

// Start runs a tick immediately and then on every interval until Stop is
// called or ctx is done.
func (rs *reminderScanner) Start(ctx context.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		return
	}
	rs.running = true
	rs.stopCh = make(chan struct{})
	rs.doneCh = make(chan struct{})

	go rs.loop(ctx, rs.stopCh, rs.doneCh)
	rs.log.WithFields(logrus.Fields{
		"interval": rs.cfg.Interval.String(),
		"window":   rs.cfg.Window.String(),
	}).Info("reminder scanner started")
}

// Stop halts the loop and waits for an in-flight tick to return.
func (rs *reminderScanner) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	close(rs.stopCh)
	done := rs.doneCh
	rs.mu.Unlock()

	<-done
	rs.log.Info("reminder scanner stopped")
}

func (rs *reminderScanner) LastTick() time.Time {
	n := rs.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (rs *reminderScanner) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(rs.cfg.Interval)
	defer ticker.Stop()

	rs.scheduledTick(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.scheduledTick(ctx)
		}
	}
}

// scheduledTick is the timer-driven entry point. It never blocks behind a
// previous tick and never lets a panic escape the loop.
func (rs *reminderScanner) scheduledTick(ctx context.Context) {
	if !rs.runMu.TryLock() {
		scannerTicks.WithLabelValues("skipped").Inc()
		rs.log.Warn("previous reminder tick still running, skipping")
		return
	}
	defer rs.runMu.Unlock()

	if _, err := rs.runTick(ctx); err != nil {
		rs.log.WithError(err).Error("reminder tick failed")
	}
}

// Tick runs one scan, waiting for any in-flight tick to finish first.
func (rs *reminderScanner) Tick(ctx context.Context) (*domain.TickResult, error) {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()

	return rs.runTick(ctx)
}

func (rs *reminderScanner) runTick(parent context.Context) (res *domain.TickResult, err error) {
	ctx, cancel := context.WithTimeout(parent, rs.cfg.TickTimeout)
	defer cancel()

	tickID := uuid.NewString()
	logger := rs.log.WithField("tick_id", tickID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reminder tick panicked: %v", r)
		}
		scannerTickDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			scannerTicks.WithLabelValues("error").Inc()
			return
		}
		scannerTicks.WithLabelValues("ok").Inc()
		rs.lastTick.Store(time.Now().UnixNano())
		logger.WithFields(logrus.Fields{
			"schedules":  res.Schedules,
			"dispatches": res.Dispatches,
			"failures":   res.Failures,
		}).Debug("reminder tick finished")
	}()

	return rs.tick(ctx, logger)
}

type reminderJob struct {
	schedule *domain.Schedule
	user     domain.User
	role     string
}

func (rs *reminderScanner) tick(ctx context.Context, logger *logrus.Entry) (*domain.TickResult, error) {
	now := rs.cfg.Now().In(rs.cfg.Location)

	schedules, err := rs.dueSchedules(ctx, now)
	if err != nil {
		return nil, err
	}
	res := &domain.TickResult{Schedules: len(schedules)}
	if len(schedules) == 0 {
		return res, nil
	}

	var jobs []reminderJob
	for i := range schedules {
		s := &schedules[i]
		if s.Lecturer.ID != 0 {
			jobs = append(jobs, reminderJob{schedule: s, user: s.Lecturer, role: domain.RoleLecturer})
		}
		if s.CourseID == nil {
			continue
		}
		students, err := rs.lookup.FindStudentsByCourse(ctx, *s.CourseID)
		if err != nil {
			res.Failures++
			logger.WithError(err).WithField("schedule_id", s.ID).Error("could not resolve enrolled students")
			continue
		}
		for _, st := range students {
			jobs = append(jobs, reminderJob{schedule: s, user: st, role: domain.RoleStudent})
		}
	}

	var dispatches, failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(rs.cfg.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			dispatched, err := rs.remind(ctx, job)
			if dispatched {
				dispatches.Add(1)
			}
			if err != nil {
				failures.Add(1)
				logger.WithError(err).WithFields(logrus.Fields{
					"schedule_id": job.schedule.ID,
					"user_id":     job.user.ID,
				}).Error("reminder dispatch failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Dispatches = int(dispatches.Load())
	res.Failures += int(failures.Load())
	return res, nil
}

// remind dispatches one reminder. It reports whether the dispatcher was invoked.
func (rs *reminderScanner) remind(ctx context.Context, job reminderJob) (bool, error) {
	prefs, err := rs.lookup.GetChannelPreferences(ctx, job.user.ID)
	if err != nil {
		return false, err
	}

	var channels []domain.Channel
	for _, ch := range domain.AllChannels {
		if prefs.Enabled(ch) {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return false, nil
	}

	err = rs.dispatcher.Dispatch(ctx, &domain.DispatchRequest{
		UserID:     job.user.ID,
		ScheduleID: job.schedule.ID,
		Channels:   channels,
		Payload:    buildPayload(job.schedule, &job.user, job.role),
		Dedupe:     true,
	})
	return true, err
}

// dueSchedules queries each calendar date the window touches, so a
// window that crosses midnight still finds early-morning lectures.
func (rs *reminderScanner) dueSchedules(ctx context.Context, now time.Time) ([]domain.Schedule, error) {
	var out []domain.Schedule
	seen := make(map[int]bool)
	for _, seg := range windowSegments(now, rs.cfg.Window) {
		found, err := rs.lookup.FindSchedulesInWindow(ctx, seg.date, seg.start, seg.end)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	return out, nil
}

type windowSegment struct {
	date       time.Time
	start, end time.Duration
}

// windowSegments splits [now, now+window] into one wall-clock range per
// calendar date, at minute precision.
func windowSegments(now time.Time, window time.Duration) []windowSegment {
	loc := now.Location()
	end := now.Add(window)

	var segs []windowSegment
	cur := now
	for {
		day := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, loc)
		next := day.AddDate(0, 0, 1)
		if end.Before(next) {
			segs = append(segs, windowSegment{date: day, start: clockOf(cur), end: clockOf(end)})
			return segs
		}
		segs = append(segs, windowSegment{date: day, start: clockOf(cur), end: endOfDay})
		cur = next
	}
}

func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func buildPayload(s *domain.Schedule, u *domain.User, role string) *domain.ReminderPayload {
	p := &domain.ReminderPayload{
		ScheduleID:     s.ID,
		CourseTitle:    s.CourseTitle,
		CourseCode:     s.CourseCode,
		Date:           time.Time(s.Date).Format(time.DateOnly),
		Time:           s.Time.String(),
		Venue:          s.Venue,
		RecipientName:  u.FirstName,
		RecipientEmail: u.Email,
		RecipientPhone: u.Phone,
		DeviceToken:    u.DeviceToken,
		RecipientRole:  role,
		InstructorName: s.Lecturer.FullName(),
	}
	if s.Course != nil {
		p.CourseID = s.Course.ID
		p.CourseTitle = s.Course.Title
		p.CourseCode = s.Course.Code
	} else if s.CourseID != nil {
		p.CourseID = *s.CourseID
	}
	return p
}
