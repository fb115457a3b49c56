package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Authentication event actions recorded in auth_events.
const (
	AuditLogin  = "login"
	AuditLogout = "logout"
	AuditSignup = "signup"
	AuditLink   = "link"
)

// AuthEvent represents a record stored in auth_events.
type AuthEvent struct {
	ActorID int64
	Action  string
	Method  string
	Meta    map[string]any
	At      time.Time
}

// AuditLogger writes authentication events into auth_events.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the event.
func (l *AuditLogger) Record(ctx context.Context, event AuthEvent) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if event.Action == "" {
		return errors.New("auth event requires action")
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO auth_events (actor_id, action, method, meta, occurred_at) VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`, event.ActorID, event.Action, event.Method, metaJSON, event.At)
	return err
}
