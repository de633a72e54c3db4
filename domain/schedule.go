package domain

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// The tables below belong to the course management backend. This service
// only reads them.

type ChannelPreferences struct {
	EmailEnabled    bool `json:"emailEnabled"`
	SMSEnabled      bool `json:"smsEnabled"`
	PushEnabled     bool `json:"pushEnabled"`
	CalendarEnabled bool `json:"calendarEnabled"`
}

func (p *ChannelPreferences) ToChannels() Channels {
	if p == nil {
		return DefaultChannelPreferences()
	}
	return Channels{
		ChannelEmail:    p.EmailEnabled,
		ChannelSMS:      p.SMSEnabled,
		ChannelPush:     p.PushEnabled,
		ChannelCalendar: p.CalendarEnabled,
	}
}

// DefaultChannelPreferences applies when a user never stored preferences.
func DefaultChannelPreferences() Channels {
	return Channels{ChannelEmail: true, ChannelSMS: true, ChannelPush: true, ChannelCalendar: true}
}

type User struct {
	ID                      int                 `gorm:"primaryKey" json:"id"`
	FirstName               string              `gorm:"column:fname" json:"first_name"`
	LastName                string              `gorm:"column:lname" json:"last_name"`
	Email                   string              `json:"email"`
	Phone                   string              `json:"phone"`
	Role                    string              `json:"role"`
	DeviceToken             string              `gorm:"column:device_token" json:"device_token,omitempty"`
	NotificationPreferences *ChannelPreferences `gorm:"column:notificationPreferences;serializer:json" json:"notification_preferences,omitempty"`
}

func (User) TableName() string { return "user" }

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Course struct {
	ID    int    `gorm:"primaryKey" json:"id"`
	Title string `gorm:"column:course_title" json:"title"`
	Code  string `gorm:"column:course_code" json:"code"`
}

func (Course) TableName() string { return "course" }

type Schedule struct {
	ID          int            `gorm:"primaryKey" json:"id"`
	CourseTitle string         `gorm:"column:course_title" json:"course_title"`
	CourseCode  string         `gorm:"column:course_code" json:"course_code"`
	Date        datatypes.Date `gorm:"type:date" json:"date"`
	Time        datatypes.Time `gorm:"type:time" json:"time"`
	Venue       string         `json:"venue"`
	LecturerID  int            `gorm:"column:lecturerId" json:"lecturer_id"`
	Lecturer    User           `gorm:"foreignKey:LecturerID" json:"lecturer"`
	CourseID    *int           `gorm:"column:courseId" json:"course_id"`
	Course      *Course        `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Schedule) TableName() string { return "schedule" }

type Enrollment struct {
	ID        int  `gorm:"primaryKey" json:"id"`
	StudentID int  `gorm:"column:studentId" json:"student_id"`
	Student   User `gorm:"foreignKey:StudentID" json:"student"`
	CourseID  int  `gorm:"column:courseId" json:"course_id"`
}

func (Enrollment) TableName() string { return "enrollment" }

type ScheduleLookup interface {
	// FindSchedulesInWindow returns schedules on date whose wall-clock time
	// lies in [start, end], with lecturer and course loaded.
	FindSchedulesInWindow(ctx context.Context, date time.Time, start, end time.Duration) ([]Schedule, error)
	FindStudentsByCourse(ctx context.Context, courseID int) ([]User, error)
	GetChannelPreferences(ctx context.Context, userID int) (Channels, error)
}

const (
	RoleLecturer = "lecturer"
	RoleStudent  = "student"
)

// ReminderPayload is everything a provider needs to render one reminder.
type ReminderPayload struct {
	CourseID       int    `json:"course_id"`
	ScheduleID     int    `json:"schedule_id"`
	CourseTitle    string `json:"course_title"`
	CourseCode     string `json:"course_code"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Venue          string `json:"venue"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	RecipientPhone string `json:"recipient_phone"`
	DeviceToken    string `json:"device_token"`
	RecipientRole  string `json:"recipient_role"`
	InstructorName string `json:"instructor_name"`
}

// Address picks the recipient address used by ch.
func (p *ReminderPayload) Address(ch Channel) string {
	switch ch {
	case ChannelEmail, ChannelCalendar:
		return p.RecipientEmail
	case ChannelSMS:
		return p.RecipientPhone
	case ChannelPush:
		return p.DeviceToken
	}
	return ""
}

type ScannerUseCase interface {
	Start(ctx context.Context)
	Stop()
	Tick(ctx context.Context) (*TickResult, error)
	LastTick() time.Time
}

type TickResult struct {
	Schedules  int `json:"schedules"`
	Dispatches int `json:"dispatches"`
	Failures   int `json:"failures"`
}
