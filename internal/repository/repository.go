package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
)

// EventQuery filters the journal. Zero values disable a filter.
type EventQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, q EventQuery) ([]models.Event, error)
}

type SessionRepo interface {
	Create(ctx context.Context, s models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repository struct {
	EventRepo   EventRepo
	SessionRepo SessionRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:   NewEventSQLite(db),
		SessionRepo: NewSessionSQLite(db),
	}
}
