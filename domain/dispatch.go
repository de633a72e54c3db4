package domain

import (
	"context"
	"fmt"
	"time"
)

// Message is the rendered reminder handed to a provider.
type Message struct {
	Subject string
	Body    string
	Short   string
	Payload *ReminderPayload
}

// ComposeReminder renders the lecture reminder for the payload's recipient.
func ComposeReminder(p *ReminderPayload) *Message {
	title := p.CourseTitle
	if title == "" {
		title = "Unknown Course"
	}
	code := p.CourseCode
	if code == "" {
		code = "Unknown Code"
	}

	lead := "This is a reminder for your upcoming lecture:"
	if p.RecipientRole == RoleLecturer {
		lead = "This is a reminder for your lecture:"
	}

	body := fmt.Sprintf(`Hello %s,

%s
Course: %s (%s)
Date: %s
Time: %s
Venue: %s

Best regards,
Lecture Reminder System`, p.RecipientName, lead, title, code, p.Date, p.Time, p.Venue)

	return &Message{
		Subject: fmt.Sprintf("Lecture Reminder: %s", title),
		Body:    body,
		Short:   fmt.Sprintf("Reminder: %s (%s) on %s at %s, venue %s.", title, code, p.Date, p.Time, p.Venue),
		Payload: p,
	}
}

type DispatchRequest struct {
	UserID     int              `json:"user_id" valid:"required~user_id is required"`
	ScheduleID int              `json:"schedule_id" valid:"required~schedule_id is required"`
	Channels   []Channel        `json:"channels"`
	Payload    *ReminderPayload `json:"payload"`
	// Dedupe skips channels that already have a sent or pending entry for
	// the same user and schedule.
	Dedupe bool `json:"-"`
}

// Dispatcher fans one reminder out to a recipient's enabled channels.
// Per-channel failures are recorded in the delivery log, not returned.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *DispatchRequest) error
}

// ChannelProvider wraps one external delivery API.
type ChannelProvider interface {
	Channel() Channel
	Send(ctx context.Context, cfg ChannelConfig, address string, msg *Message) (string, error)
	Test(ctx context.Context, cfg ChannelConfig, address string) (string, error)
}

type TestRequest struct {
	OwnerType OwnerType `json:"owner_type"`
	OwnerID   int       `json:"owner_id"`
	Channel   Channel   `json:"provider"`
	Address   string    `json:"address"`
}

type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TesterUseCase interface {
	TestChannel(ctx context.Context, req *TestRequest) (*TestResult, error)
}

type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	LastTick  *time.Time        `json:"last_tick,omitempty"`
}

type HealthUseCase interface {
	Check(ctx context.Context) *HealthReport
}
