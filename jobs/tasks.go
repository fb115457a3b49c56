package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is the task type for the post-signup welcome mail.
	TaskTypeWelcomeEmail = "auth:welcome_email"
	// TaskTypeSessionSweep prunes session keys bound to users that no
	// longer resolve in the directory.
	TaskTypeSessionSweep = "auth:session_sweep"
)

// WelcomeEmailPayload describes the information required to greet a new
// account.
type WelcomeEmailPayload struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Method    string `json:"method"`
}

// NewWelcomeEmailTask constructs an Asynq task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data), nil
}

// Mailer delivers transactional mail for the identity flows.
type Mailer interface {
	SendWelcome(ctx context.Context, payload WelcomeEmailPayload) error
}

// LogMailer records deliveries in the log instead of sending them. It is
// the default until an SMTP relay is configured.
type LogMailer struct {
	From   string
	Logger *slog.Logger
}

// SendWelcome logs the delivery.
func (m LogMailer) SendWelcome(ctx context.Context, payload WelcomeEmailPayload) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("welcome email delivered",
		slog.String("from", m.From),
		slog.String("email", payload.Email),
		slog.String("method", payload.Method))
	return nil
}

// NewWelcomeEmailHandler returns the TaskTypeWelcomeEmail handler backed by
// the given mailer. Malformed payloads are dropped rather than retried.
func NewWelcomeEmailHandler(mailer Mailer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WelcomeEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return mailer.SendWelcome(ctx, payload)
	}
}

// NewSessionSweepTask constructs the periodic sweep task.
func NewSessionSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeSessionSweep, nil), nil
}
