package battlesession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battleutil "github.com/cypher-arena/battle-engine/app/modules/battle/utils"
)

// TimerTick is the per-second countdown emitted while a round runs against a
// deadline.
type TimerTick struct {
	BattleID    battletypes.BattleID `json:"battle_id"`
	RoundID     battletypes.RoundID  `json:"round_id"`
	RoundNumber int                  `json:"round_number"`
	// Stage is ACTIVE while the submission window runs and VOTING while the
	// voting window runs.
	Stage     battletypes.RoundStatus `json:"stage"`
	Deadline  time.Time               `json:"deadline"`
	Remaining time.Duration           `json:"remaining"`
}

// Resolver is the slice of the application service the scheduler drives when a
// deadline passes. Both operations are idempotent, so firing against an
// already-resolved round is harmless.
type Resolver interface {
	HandleRoundTimeout(ctx context.Context, roundID battletypes.RoundID) error
	CloseVoting(ctx context.Context, roundID battletypes.RoundID) error
}

// RoundScheduler watches one battle's current round and turns wall-clock time
// into countdown ticks and deadline resolutions. The session feeds it round
// state as change records arrive; the scheduler never reads the database.
type RoundScheduler struct {
	battleID battletypes.BattleID
	resolver Resolver
	clock    battleutil.Clock
	interval time.Duration
	logger   *slog.Logger
	onTick   func(TimerTick)

	mu    sync.Mutex
	round *battletypes.Round
	// fired remembers which (round, stage) deadlines have already been
	// resolved so a slow resolution doesn't get re-fired every tick.
	fired map[string]struct{}
}

// NewRoundScheduler builds a scheduler for one battle. onTick may be nil when
// the caller only wants deadline enforcement.
func NewRoundScheduler(battleID battletypes.BattleID, resolver Resolver, clock battleutil.Clock, logger *slog.Logger, onTick func(TimerTick)) *RoundScheduler {
	if clock == nil {
		clock = battleutil.RealClock{}
	}
	return &RoundScheduler{
		battleID: battleID,
		resolver: resolver,
		clock:    clock,
		interval: time.Second,
		logger:   logger,
		onTick:   onTick,
		fired:    map[string]struct{}{},
	}
}

// SetRound replaces the round the scheduler is tracking. Pass nil between
// rounds or once the battle is over.
func (s *RoundScheduler) SetRound(round *battletypes.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if round == nil {
		s.round = nil
		return
	}
	copied := *round
	s.round = &copied
}

// Run ticks until ctx is cancelled.
func (s *RoundScheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval):
			s.Tick(ctx)
		}
	}
}

// Tick evaluates the tracked round against the clock once. Exported so tests
// and the session loop can drive it without the timer.
func (s *RoundScheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	round := s.round
	s.mu.Unlock()
	if round == nil {
		return
	}

	var deadline *time.Time
	switch round.Status {
	case battletypes.RoundActive:
		deadline = round.SubmissionDeadline
	case battletypes.RoundVoting:
		deadline = round.VotingDeadline
	default:
		return
	}
	if deadline == nil {
		return
	}

	now := s.clock.NowUTC()
	remaining := deadline.Sub(now)
	if remaining > 0 {
		if s.onTick != nil {
			s.onTick(TimerTick{
				BattleID:    s.battleID,
				RoundID:     round.ID,
				RoundNumber: round.RoundNumber,
				Stage:       round.Status,
				Deadline:    *deadline,
				Remaining:   remaining,
			})
		}
		return
	}

	key := fmt.Sprintf("%s/%s", round.ID, round.Status)
	s.mu.Lock()
	if _, done := s.fired[key]; done {
		s.mu.Unlock()
		return
	}
	s.fired[key] = struct{}{}
	s.mu.Unlock()

	var err error
	switch round.Status {
	case battletypes.RoundActive:
		err = s.resolver.HandleRoundTimeout(ctx, round.ID)
	case battletypes.RoundVoting:
		err = s.resolver.CloseVoting(ctx, round.ID)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "deadline resolution failed",
			slog.Any("battle_id", s.battleID),
			slog.Any("round_id", round.ID),
			slog.String("stage", string(round.Status)),
			slog.Any("error", err))
		// Allow the next tick to retry.
		s.mu.Lock()
		delete(s.fired, key)
		s.mu.Unlock()
	}
}
