package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/batch"
	"github.com/UnknownOlympus/cartograph/internal/events"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/UnknownOlympus/cartograph/internal/repository"
)

// BatchGeoCoder geocodes a set of addresses through one batch job.
type BatchGeoCoder interface {
	GeoCodeAddresses(
		ctx context.Context,
		addresses map[models.RequestID]models.Address,
		onResolved batch.ResolvedFunc,
		onUnresolved batch.UnresolvedFunc,
	) (batch.Outcome, error)
}

// Options tunes the service loop.
type Options struct {
	BatchSize  int           // BatchSize is the maximum number of tasks per batch job.
	Interval   time.Duration // Interval between ticks.
	JobTimeout time.Duration // JobTimeout bounds one batch call, zero means unbounded.
}

// GeocodingService periodically geocodes pending tasks in batches and stores the results.
type GeocodingService struct {
	log       *slog.Logger         // Logger for logging service activities
	repo      repository.Interface // Interface for data repository access
	geocoder  BatchGeoCoder        // Batch geocoder running one job per tick
	publisher events.Publisher     // Publisher of task outcome events
	metrics   *metrics.Metrics     // Metrics for tracking service performance
	opts      Options
}

// NewGeocodingService creates a new instance of GeocodingService.
func NewGeocodingService(
	log *slog.Logger,
	repo repository.Interface,
	geocoder BatchGeoCoder,
	publisher events.Publisher,
	metrics *metrics.Metrics,
	opts Options,
) *GeocodingService {
	return &GeocodingService{
		log:       log,
		repo:      repo,
		geocoder:  geocoder,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
	}
}

// Run starts the geocoding service, which periodically polls for new tasks to geocode.
// It listens for a cancellation signal from the context to gracefully stop the service.
func (gs *GeocodingService) Run(ctx context.Context) {
	ticker := time.NewTicker(gs.opts.Interval)
	defer ticker.Stop()

	gs.log.InfoContext(ctx, "Geocoding service started...")

	for {
		select {
		case <-ctx.Done():
			gs.log.InfoContext(ctx, "Geocoding service stopped.")
			return
		case <-ticker.C:
			gs.log.InfoContext(ctx, "Polling for new tasks to geocode...")
			gs.processBatch(ctx)
		}
	}
}

// batchRun tracks the tasks of one batch job and the events they produce.
type batchRun struct {
	tasks   map[models.RequestID]models.Task
	handled map[int]struct{}
	events  []events.TaskEvent
}

// processBatch fetches pending tasks, geocodes them as one batch job and records every outcome.
func (gs *GeocodingService) processBatch(ctx context.Context) {
	tasks, err := gs.repo.FetchTasksForGeocoding(ctx, gs.opts.BatchSize)
	if err != nil {
		gs.log.ErrorContext(ctx, "Failed to fetch tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		gs.log.InfoContext(ctx, "No tasks to process.")
		return
	}

	run := &batchRun{
		tasks:   make(map[models.RequestID]models.Task, len(tasks)),
		handled: make(map[int]struct{}, len(tasks)),
	}
	addresses := make(map[models.RequestID]models.Address, len(tasks))
	for _, task := range tasks {
		id := models.RequestID(strconv.Itoa(task.ID))
		run.tasks[id] = task
		addresses[id] = task.Address
	}

	gs.log.InfoContext(ctx, "Found tasks to process. Starting batch job.", "jobs", len(tasks))

	jobCtx := ctx
	if gs.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, gs.opts.JobTimeout)
		defer cancel()
	}

	startTime := time.Now()
	outcome, err := gs.geocoder.GeoCodeAddresses(jobCtx, addresses, gs.onResolved(run), gs.onUnresolved(run))
	gs.metrics.RequestSeconds.WithLabelValues("batch_job").Observe(time.Since(startTime).Seconds())

	if err != nil {
		gs.log.ErrorContext(ctx, "Batch job failed", "batch_id", outcome.BatchID, "job_id", outcome.JobID, "error", err)
		if !errors.Is(err, batch.ErrJobNotCompleted) {
			gs.metrics.APIErrors.Inc()
		}
		gs.failRemaining(ctx, run, err)
	}

	for i := range run.events {
		run.events[i].BatchID = outcome.BatchID
		run.events[i].JobID = outcome.JobID
	}
	if err = gs.publisher.Publish(ctx, run.events...); err != nil {
		gs.log.ErrorContext(ctx, "Failed to publish task events", "batch_id", outcome.BatchID, "error", err)
	}

	gs.log.InfoContext(ctx, "Processing batch finished",
		"batch_id", outcome.BatchID, "resolved", outcome.Resolved, "unresolved", outcome.Unresolved)
}

func (gs *GeocodingService) onResolved(run *batchRun) batch.ResolvedFunc {
	return func(ctx context.Context, id models.RequestID, coords models.Coordinates) error {
		task, ok := run.tasks[id]
		if !ok {
			return fmt.Errorf("unexpected request id %q", id)
		}
		run.handled[task.ID] = struct{}{}
		gs.metrics.TaskProcessed.WithLabelValues("success").Inc()

		if err := gs.repo.UpdateTaskCoordinates(ctx, task.ID, coords); err != nil {
			gs.log.ErrorContext(ctx, "Failed to update coordinates for task", "task", task.ID, "error", err)
			return nil
		}
		gs.log.DebugContext(ctx, "Task geocoded", "task", task.ID)

		run.events = append(run.events, events.TaskEvent{
			TaskID:      task.ID,
			Type:        events.TypeGeocoded,
			Coordinates: &coords,
			OccurredAt:  time.Now().UTC(),
		})

		return nil
	}
}

func (gs *GeocodingService) onUnresolved(run *batchRun) batch.UnresolvedFunc {
	return func(ctx context.Context, ids []models.RequestID) error {
		for _, id := range ids {
			task, ok := run.tasks[id]
			if !ok {
				continue
			}
			run.handled[task.ID] = struct{}{}
			gs.recordFailure(ctx, task.ID, "no coordinates found for address")

			run.events = append(run.events, events.TaskEvent{
				TaskID:     task.ID,
				Type:       events.TypeUnresolved,
				OccurredAt: time.Now().UTC(),
			})
		}

		return nil
	}
}

// failRemaining counts a failed attempt for every task the aborted batch did not reach.
func (gs *GeocodingService) failRemaining(ctx context.Context, run *batchRun, cause error) {
	for _, task := range run.tasks {
		if _, done := run.handled[task.ID]; done {
			continue
		}
		gs.recordFailure(ctx, task.ID, cause.Error())
	}
}

func (gs *GeocodingService) recordFailure(ctx context.Context, taskID int, reason string) {
	gs.metrics.TaskProcessed.WithLabelValues("failure").Inc()

	if err := gs.repo.IncrementFailureCount(ctx, taskID, reason); err != nil {
		gs.log.ErrorContext(ctx, "Could not update failure count for task", "task", taskID, "error", err)
	}
}
