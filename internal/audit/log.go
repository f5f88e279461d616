package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event is one append-only trail entry. Detail carries a small JSON
// blob whose shape depends on the action.
type Event struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	Subject   string `json:"subject"`
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"created_at"`
}

const (
	ActionAttemptStarted   = "attempt.started"
	ActionAttemptSubmitted = "attempt.submitted"
	ActionUserDeleted      = "user.deleted"
)

// Recorder is the write-plus-read surface of the trail. Handlers hold
// this rather than the concrete log so tests can drop events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

func (l *Log) Record(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, subject, detail, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), e.ActorID, e.Action, e.Subject, e.Detail, time.Now().Unix())
	return err
}

func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, actor_id, action, subject, detail, created_at
		 FROM audit_log ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Subject, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Discard satisfies Recorder and drops everything.
type Discard struct{}

func (Discard) Record(context.Context, Event) error          { return nil }
func (Discard) Recent(context.Context, int) ([]Event, error) { return []Event{}, nil }
