package repository

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/cartograph/internal/models"
)

// MaxGeocodingAttempts is the number of failed attempts after which a task is no longer fetched.
const MaxGeocodingAttempts = 5

// Repository stores geocoding tasks in PostgreSQL.
type Repository struct {
	db  Database
	log *slog.Logger
}

// Interface is the task store used by the geocoding service.
type Interface interface {
	FetchTasksForGeocoding(ctx context.Context, limit int) ([]models.Task, error)
	UpdateTaskCoordinates(ctx context.Context, taskID int, coords models.Coordinates) error
	IncrementFailureCount(ctx context.Context, taskID int, errMsg string) error
	Ping(ctx context.Context) error
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}
