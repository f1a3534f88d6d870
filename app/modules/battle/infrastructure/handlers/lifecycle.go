// Package battlehandlers wires bus events to the job queue and the audit log.
package battlehandlers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battlequeue "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/queue"
	battledb "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/repositories"
)

// BattleHandlers is the production Handlers implementation.
type BattleHandlers struct {
	queue    battlequeue.QueueService
	rounds   battledb.RoundDB
	eventLog battledb.EventLogDB
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewBattleHandlers wires the event handlers.
func NewBattleHandlers(
	queue battlequeue.QueueService,
	rounds battledb.RoundDB,
	eventLog battledb.EventLogDB,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &BattleHandlers{
		queue:    queue,
		rounds:   rounds,
		eventLog: eventLog,
		logger:   logger,
		tracer:   tracer,
	}
}

// HandleBattleAccepted schedules the first round's submission deadline so the
// timeout fires even if neither participant opens a session.
func (h *BattleHandlers) HandleBattleAccepted(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "handle_battle_accepted")
	defer span.End()

	var payload battleevents.BattleAcceptedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode battle accepted payload: %w", err)
	}

	rounds, err := h.rounds.ListRounds(ctx, payload.BattleID)
	if err != nil {
		return fmt.Errorf("failed to list rounds for battle %s: %w", payload.BattleID, err)
	}
	for _, round := range rounds {
		if round.Status != battletypes.RoundActive || round.SubmissionDeadline == nil {
			continue
		}
		if err := h.queue.ScheduleDeadline(ctx, payload.BattleID, round.ID, battlequeue.StageSubmission, *round.SubmissionDeadline); err != nil {
			return err
		}
	}
	return nil
}

// HandleRoundChanged mirrors round deadlines into the job queue as rounds move
// through ACTIVE and VOTING. The feed record may be stale by the time it is
// handled; the job body is status-guarded so that is harmless.
func (h *BattleHandlers) HandleRoundChanged(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "handle_round_changed")
	defer span.End()

	var rec battleevents.ChangeRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return fmt.Errorf("failed to decode change record: %w", err)
	}
	round, err := rec.Round()
	if err != nil {
		return err
	}

	switch round.Status {
	case battletypes.RoundActive:
		if round.SubmissionDeadline == nil {
			return nil
		}
		return h.queue.ScheduleDeadline(ctx, rec.BattleID, round.ID, battlequeue.StageSubmission, *round.SubmissionDeadline)
	case battletypes.RoundVoting:
		if round.VotingDeadline == nil {
			return nil
		}
		return h.queue.ScheduleDeadline(ctx, rec.BattleID, round.ID, battlequeue.StageVoting, *round.VotingDeadline)
	default:
		return nil
	}
}

// HandleBattleCompleted cancels any deadline jobs still pending for the
// battle.
func (h *BattleHandlers) HandleBattleCompleted(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "handle_battle_completed")
	defer span.End()

	var payload battleevents.BattleCompletedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode battle completed payload: %w", err)
	}

	if err := h.queue.CancelBattleJobs(ctx, payload.BattleID); err != nil {
		// Orphaned jobs no-op when they fire.
		h.logger.WarnContext(ctx, "Failed to cancel deadline jobs after completion",
			slog.String("battle_id", payload.BattleID.String()),
			slog.Any("error", err),
		)
	}
	return nil
}

// HandleRoundTimedOut records the autonomous transition in the audit log.
func (h *BattleHandlers) HandleRoundTimedOut(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "handle_round_timed_out")
	defer span.End()

	var payload battleevents.RoundTimedOutPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode round timed out payload: %w", err)
	}

	data := map[string]any{
		"round_id":     payload.RoundID.String(),
		"round_number": payload.RoundNumber,
		"outcome":      string(payload.Outcome),
	}
	if payload.ForfeitedBy != nil {
		data["forfeited_by"] = string(*payload.ForfeitedBy)
	}
	return h.eventLog.AppendEvent(ctx, payload.BattleID, "ROUND_TIMED_OUT", data, nil)
}
