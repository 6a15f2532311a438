package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/cartograph/internal/models"
)

// FetchTasksForGeocoding retrieves open tasks without coordinates that have a street address
// and fewer than MaxGeocodingAttempts failed attempts, oldest first.
func (r *Repository) FetchTasksForGeocoding(ctx context.Context, limit int) ([]models.Task, error) {
	var tasks []models.Task
	query := `
		SELECT
			task_id,
			address,
			COALESCE(city, ''),
			COALESCE(region, ''),
			COALESCE(postal_code, ''),
			COALESCE(country, '')
		FROM public.tasks
		WHERE
			latitude IS NULL
			AND is_closed = false
			AND geocoding_attempts < $1
			AND address IS NOT NULL AND address <> ''
		ORDER BY created_at ASC
		LIMIT $2;
	`

	rows, err := r.db.Query(ctx, query, MaxGeocodingAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active tasks with address: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task models.Task
		errScan := rows.Scan(
			&task.ID,
			&task.Address.Street,
			&task.Address.City,
			&task.Address.Region,
			&task.Address.PostalCode,
			&task.Address.Country,
		)
		if errScan != nil {
			return nil, fmt.Errorf("failed to scan active task with address: %w", errScan)
		}
		r.log.DebugContext(ctx, "A new active task without coordinates has been received.",
			"ID", task.ID, "Address", task.Address.Street)
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return tasks, nil
}

// ErrTaskNotFound is returned when an update matches no task.
var ErrTaskNotFound = errors.New("task not found")

// maxErrorLength bounds the stored geocoding error. Batch failures can carry long provider bodies.
const maxErrorLength = 512

// UpdateTaskCoordinates stores the coordinates of a task and clears its last geocoding error.
func (r *Repository) UpdateTaskCoordinates(ctx context.Context, taskID int, coords models.Coordinates) error {
	query := `
		UPDATE tasks
		SET
			latitude = $1,
			longitude = $2,
			geocoding_error = NULL,
			geocoded_at = now()
		WHERE
			task_id = $3;
	`

	tag, err := r.db.Exec(ctx, query, coords.Latitude, coords.Longitude, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task coordinates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update task %d coordinates: %w", taskID, ErrTaskNotFound)
	}

	return nil
}

// IncrementFailureCount counts one more failed geocoding attempt for a task and records why.
// Tasks reaching MaxGeocodingAttempts are no longer fetched.
func (r *Repository) IncrementFailureCount(ctx context.Context, taskID int, errMsg string) error {
	query := `
		UPDATE tasks
		SET
			geocoding_attempts = geocoding_attempts + 1,
			geocoding_error = $1
		WHERE task_id = $2;
	`

	tag, err := r.db.Exec(ctx, query, truncateError(errMsg), taskID)
	if err != nil {
		return fmt.Errorf("failed to update geocoding error and number of attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to count attempt for task %d: %w", taskID, ErrTaskNotFound)
	}

	return nil
}

func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxErrorLength {
		return msg
	}

	return string(runes[:maxErrorLength])
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database is unreachable: %w", err)
	}

	return nil
}
