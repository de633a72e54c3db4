package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecturenotify/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// scheduleLookup reads the course backend's tables.
type scheduleLookup struct {
	db *gorm.DB
}

func NewScheduleLookup(db *gorm.DB) domain.ScheduleLookup {
	return &scheduleLookup{
		db: db,
	}
}

func (sl *scheduleLookup) FindSchedulesInWindow(ctx context.Context, date time.Time, start, end time.Duration) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	err := sl.db.WithContext(ctx).
		Preload("Lecturer").
		Preload("Course").
		Where("date = ? AND time >= ? AND time <= ?",
			datatypes.Date(date), datatypes.Time(start), datatypes.Time(end)).
		Order("time ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("could not find schedules on %s: %w", date.Format(time.DateOnly), err)
	}
	return schedules, nil
}

func (sl *scheduleLookup) FindStudentsByCourse(ctx context.Context, courseID int) ([]domain.User, error) {
	var enrollments []domain.Enrollment
	err := sl.db.WithContext(ctx).
		Preload("Student").
		Where(`"courseId" = ?`, courseID).
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("could not find students for course %d: %w", courseID, err)
	}

	students := make([]domain.User, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Student.ID == 0 {
			continue
		}
		students = append(students, e.Student)
	}
	return students, nil
}

func (sl *scheduleLookup) GetChannelPreferences(ctx context.Context, userID int) (domain.Channels, error) {
	var user domain.User
	err := sl.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DefaultChannelPreferences(), nil
		}
		return nil, fmt.Errorf("could not get preferences for user %d: %w", userID, err)
	}
	return user.NotificationPreferences.ToChannels(), nil
}
