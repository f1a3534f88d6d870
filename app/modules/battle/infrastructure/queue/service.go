// Package battlequeue schedules server-side deadline jobs with River so
// round timeouts resolve even when no live session is attached to the battle.
package battlequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// Metrics is the operation counter surface the queue reports to.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// QueueService is the scheduling contract the battle module depends on.
type QueueService interface {
	// ScheduleDeadline enqueues a round deadline job for the given stage.
	ScheduleDeadline(ctx context.Context, battleID battletypes.BattleID, roundID battletypes.RoundID, stage string, at time.Time) error
	// CancelBattleJobs cancels every pending job for a battle, used when a
	// battle completes early.
	CancelBattleJobs(ctx context.Context, battleID battletypes.BattleID) error
	// AwardXP enqueues one XP grant for delivery with retries.
	AwardXP(ctx context.Context, userID string, amount int, reason string) error
	GetScheduledJobs(ctx context.Context, battleID battletypes.BattleID) ([]JobInfo, error)
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service is the River-backed QueueService.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	db      *bun.DB
	logger  *slog.Logger
	metrics Metrics
}

// NewService builds the River client on its own pgx pool (River does not run
// on database/sql) and registers the deadline worker.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics Metrics, resolver Resolver, applier XPApplier) (*Service, error) {
	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewRoundDeadlineWorker(logger, resolver))
	river.AddWorker(workers, NewXPAwardWorker(logger, applier))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			"battle":           {MaxWorkers: 25},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))
	logger.InfoContext(ctx, "Battle queue service initialized")

	return &Service{
		client:  riverClient,
		pool:    pool,
		db:      bunDB,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Start begins job processing.
func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Battle queue service started")
	return nil
}

// Stop drains workers and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.pool.Close()
	s.logger.InfoContext(ctx, "Battle queue service stopped")
	return nil
}

// ScheduleDeadline enqueues one deadline job. Uniqueness by args means a
// session and a lifecycle handler scheduling the same deadline produce one
// job.
func (s *Service) ScheduleDeadline(ctx context.Context, battleID battletypes.BattleID, roundID battletypes.RoundID, stage string, at time.Time) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "schedule_deadline", "river")

	job := RoundDeadlineJob{
		BattleID: battleID,
		RoundID:  roundID,
		Stage:    stage,
	}
	result, err := s.client.Insert(ctx, job, &river.InsertOpts{
		Queue:       "battle",
		ScheduledAt: at,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "schedule_deadline", "river")
		return fmt.Errorf("failed to schedule deadline job: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "schedule_deadline", "river")
	s.metrics.RecordOperationDuration(ctx, "schedule_deadline", "river", time.Since(start))
	s.logger.InfoContext(ctx, "Deadline job scheduled",
		slog.String("battle_id", battleID.String()),
		slog.String("round_id", roundID.String()),
		slog.String("stage", stage),
		slog.Time("at", at),
		slog.Int64("job_id", result.Job.ID),
	)
	return nil
}

// AwardXP enqueues one XP grant. No uniqueness: every call is a distinct
// grant.
func (s *Service) AwardXP(ctx context.Context, userID string, amount int, reason string) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "award_xp", "river")

	_, err := s.client.Insert(ctx, XPAwardJob{
		UserID: userID,
		Amount: amount,
		Reason: reason,
	}, &river.InsertOpts{Queue: "battle"})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "award_xp", "river")
		return fmt.Errorf("failed to enqueue XP award: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "award_xp", "river")
	s.metrics.RecordOperationDuration(ctx, "award_xp", "river", time.Since(start))
	return nil
}

// CancelBattleJobs cancels pending deadline jobs for the battle.
func (s *Service) CancelBattleJobs(ctx context.Context, battleID battletypes.BattleID) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "cancel_battle_jobs", "river")

	type riverJobRow struct {
		ID int64 `bun:"id"`
	}
	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id").
		Where("kind = ?", RoundDeadlineJob{}.Kind()).
		Where("state IN (?, ?)", "available", "scheduled").
		Where("args->>'battle_id' = ?", battleID.String()).
		Scan(ctx, &jobs)
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "cancel_battle_jobs", "river")
		return fmt.Errorf("failed to query jobs for cancellation: %w", err)
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to cancel deadline job",
				slog.Int64("job_id", job.ID),
				slog.Any("error", err),
			)
			continue
		}
		cancelled++
	}

	s.metrics.RecordOperationSuccess(ctx, "cancel_battle_jobs", "river")
	s.metrics.RecordOperationDuration(ctx, "cancel_battle_jobs", "river", time.Since(start))
	s.logger.InfoContext(ctx, "Cancelled battle deadline jobs",
		slog.String("battle_id", battleID.String()),
		slog.Int("found", len(jobs)),
		slog.Int("cancelled", cancelled),
	)
	return nil
}

// GetScheduledJobs lists the battle's pending jobs for debugging.
func (s *Service) GetScheduledJobs(ctx context.Context, battleID battletypes.BattleID) ([]JobInfo, error) {
	type riverJobRow struct {
		ID          int64      `bun:"id"`
		Kind        string     `bun:"kind"`
		State       string     `bun:"state"`
		ScheduledAt *time.Time `bun:"scheduled_at"`
		CreatedAt   time.Time  `bun:"created_at"`
		Attempt     int16      `bun:"attempt"`
		MaxAttempts int16      `bun:"max_attempts"`
	}

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "scheduled_at", "created_at", "attempt", "max_attempts").
		Where("kind = ?", RoundDeadlineJob{}.Kind()).
		Where("args->>'battle_id' = ?", battleID.String()).
		Order("scheduled_at ASC NULLS LAST", "created_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled jobs: %w", err)
	}

	result := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		result[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			State:       job.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
		}
	}
	return result, nil
}

// HealthCheck verifies the queue's database connectivity.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Scan(ctx, &count)
	if err != nil {
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	return nil
}
