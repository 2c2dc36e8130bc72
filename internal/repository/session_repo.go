package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/segmentio/encoding/json"
)

// SessionSQLite stores issued tokens with their creation time (unix ms) and profile blob.
type SessionSQLite struct {
	db *sql.DB
}

func NewSessionSQLite(db *sql.DB) *SessionSQLite {
	return &SessionSQLite{db: db}
}

var _ SessionRepo = (*SessionSQLite)(nil)

const (
	insertSessionSQL        = `INSERT INTO sessions (token, created_at, remember, profile) VALUES (?, ?, ?, ?)`
	selectSessionSQL        = `SELECT token, created_at, remember, profile FROM sessions WHERE token = ?`
	deleteSessionSQL        = `DELETE FROM sessions WHERE token = ?`
	deleteSessionsBeforeSQL = `DELETE FROM sessions WHERE created_at < ?`
)

func (r *SessionSQLite) Create(ctx context.Context, s models.Session) error {
	profile, err := json.Marshal(s.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, insertSessionSQL, s.Token, s.CreatedAt.UnixMilli(), s.Remember, string(profile)); err != nil {
		return fmt.Errorf("insert session for %q: %w", s.Profile.Username, err)
	}
	return nil
}

// Get returns (nil, nil) when the token is unknown.
func (r *SessionSQLite) Get(ctx context.Context, token string) (*models.Session, error) {
	var (
		s         models.Session
		createdMs int64
		profile   string
	)
	err := r.db.QueryRowContext(ctx, selectSessionSQL, token).Scan(&s.Token, &createdMs, &s.Remember, &profile)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if err := json.Unmarshal([]byte(profile), &s.Profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	s.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &s, nil
}

func (r *SessionSQLite) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, deleteSessionSQL, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteCreatedBefore purges sessions created before cutoff and reports how many were removed.
func (r *SessionSQLite) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteSessionsBeforeSQL, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
