package battlequeue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// Resolver is the slice of the application service deadline jobs invoke.
type Resolver interface {
	HandleRoundTimeout(ctx context.Context, roundID battletypes.RoundID) error
	CloseVoting(ctx context.Context, roundID battletypes.RoundID) error
}

// XPApplier delivers one XP grant to the reward backend.
type XPApplier interface {
	AwardXP(ctx context.Context, userID string, amount int, reason string) error
}

// RoundDeadlineWorker executes RoundDeadlineJob.
type RoundDeadlineWorker struct {
	river.WorkerDefaults[RoundDeadlineJob]
	logger   *slog.Logger
	resolver Resolver
}

// NewRoundDeadlineWorker creates a worker bound to the battle resolver.
func NewRoundDeadlineWorker(logger *slog.Logger, resolver Resolver) *RoundDeadlineWorker {
	return &RoundDeadlineWorker{
		logger:   logger,
		resolver: resolver,
	}
}

// Work resolves the round's elapsed window. Errors are returned so River
// retries with backoff.
func (w *RoundDeadlineWorker) Work(ctx context.Context, job *river.Job[RoundDeadlineJob]) error {
	w.logger.InfoContext(ctx, "Processing round deadline job",
		slog.String("battle_id", job.Args.BattleID.String()),
		slog.String("round_id", job.Args.RoundID.String()),
		slog.String("stage", job.Args.Stage),
		slog.Int64("job_id", job.ID),
	)

	switch job.Args.Stage {
	case StageSubmission:
		return w.resolver.HandleRoundTimeout(ctx, job.Args.RoundID)
	case StageVoting:
		return w.resolver.CloseVoting(ctx, job.Args.RoundID)
	default:
		// Unknown stages are dropped, not retried.
		w.logger.WarnContext(ctx, "Dropping deadline job with unknown stage",
			slog.String("stage", job.Args.Stage))
		return river.JobCancel(fmt.Errorf("unknown deadline stage %q", job.Args.Stage))
	}
}

// XPAwardWorker executes XPAwardJob.
type XPAwardWorker struct {
	river.WorkerDefaults[XPAwardJob]
	logger  *slog.Logger
	applier XPApplier
}

// NewXPAwardWorker creates a worker delivering grants through applier.
func NewXPAwardWorker(logger *slog.Logger, applier XPApplier) *XPAwardWorker {
	return &XPAwardWorker{
		logger:  logger,
		applier: applier,
	}
}

// Work delivers the grant. Errors are returned so River retries with backoff.
func (w *XPAwardWorker) Work(ctx context.Context, job *river.Job[XPAwardJob]) error {
	if err := w.applier.AwardXP(ctx, job.Args.UserID, job.Args.Amount, job.Args.Reason); err != nil {
		return fmt.Errorf("failed to apply XP award: %w", err)
	}
	w.logger.InfoContext(ctx, "XP award delivered",
		slog.String("user_id", job.Args.UserID),
		slog.Int("amount", job.Args.Amount),
		slog.String("reason", job.Args.Reason),
		slog.Int64("job_id", job.ID),
	)
	return nil
}
