package battleservice

import (
	"context"
	"fmt"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// HandleRoundTimeout resolves an ACTIVE round whose submission deadline has
// passed: no submissions cancels the round, one submission forfeits the
// silent side. A round that already advanced to VOTING is left alone. Safe
// to call more than once; the status guard in the repository makes the
// second call a no-op.
func (s *BattleService) HandleRoundTimeout(ctx context.Context, roundID battletypes.RoundID) error {
	round, err := s.RoundDB.GetRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to load round: %w", err)
	}
	if round.Status != battletypes.RoundActive {
		return nil
	}

	battle, err := s.BattleDB.GetBattle(ctx, round.BattleID)
	if err != nil {
		return fmt.Errorf("failed to load battle: %w", err)
	}

	subs, err := s.SubmissionDB.ListForRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to load submissions: %w", err)
	}

	var outcome battletypes.RoundStatus
	var forfeitedBy *battletypes.UserID
	switch len(subs) {
	case 0:
		outcome = battletypes.RoundCancelled
	case 1:
		outcome = battletypes.RoundForfeited
		forfeitedBy = battle.ParticipantOn(subs[0].Side.Other())
		if forfeitedBy == nil {
			return fmt.Errorf("round %s has a submission but no opposing participant", roundID)
		}
	default:
		// Both submitted before the tick fired; normal progression to VOTING
		// supersedes the timer.
		return nil
	}

	applied, err := s.RoundDB.ResolveTimeout(ctx, roundID, outcome, forfeitedBy)
	if err != nil {
		return fmt.Errorf("failed to resolve timeout: %w", err)
	}
	if !applied {
		// A concurrent tick or submission got there first.
		return nil
	}

	payload := battleevents.RoundTimedOutPayload{
		BattleID:    round.BattleID,
		RoundID:     roundID,
		RoundNumber: round.RoundNumber,
		Outcome:     outcome,
		ForfeitedBy: forfeitedBy,
	}
	s.publishEvent(ctx, battleevents.RoundTimedOut, payload)

	s.logger.InfoContext(ctx, "Round timed out",
		"battle_id", round.BattleID,
		"round_number", round.RoundNumber,
		"outcome", string(outcome),
	)

	return s.advanceAfterRound(ctx, battle, round.RoundNumber)
}

// CloseVoting resolves a VOTING round whose voting deadline has passed and
// advances the battle. Idempotent through the same status-guard mechanism.
func (s *BattleService) CloseVoting(ctx context.Context, roundID battletypes.RoundID) error {
	round, err := s.RoundDB.GetRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to load round: %w", err)
	}
	if round.Status != battletypes.RoundVoting {
		return nil
	}

	applied, err := s.RoundDB.MarkResolved(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to close voting: %w", err)
	}
	if !applied {
		return nil
	}

	battle, err := s.BattleDB.GetBattle(ctx, round.BattleID)
	if err != nil {
		return fmt.Errorf("failed to load battle: %w", err)
	}

	s.logger.InfoContext(ctx, "Voting closed",
		"battle_id", round.BattleID,
		"round_number", round.RoundNumber,
	)

	return s.advanceAfterRound(ctx, battle, round.RoundNumber)
}

// advanceAfterRound either activates the next round or, after the final
// round, ends the battle.
func (s *BattleService) advanceAfterRound(ctx context.Context, battle *battletypes.Battle, finishedRound int) error {
	if finishedRound < battle.TotalRounds {
		next := finishedRound + 1
		deadline := s.clock.NowUTC().Add(battle.TimeLimit)
		if _, err := s.RoundDB.ActivateRound(ctx, battle.ID, next, deadline); err != nil {
			return fmt.Errorf("failed to activate round %d: %w", next, err)
		}
		if err := s.BattleDB.SetCurrentRound(ctx, battle.ID, next); err != nil {
			return fmt.Errorf("failed to advance current round: %w", err)
		}
		return nil
	}

	if _, err := s.EndBattle(ctx, battle.ID); err != nil {
		// A concurrent resolver may have completed the battle already.
		if isPhaseViolation(err) {
			return nil
		}
		return err
	}
	return nil
}
