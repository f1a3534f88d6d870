package battleservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

const eventChallengeAccepted = "CHALLENGE_ACCEPTED"

// AcceptChallenge records the opponent's acceptance, creating all round rows
// with round 1 ACTIVE on a fresh submission deadline. Only the invited
// identity may accept a directed challenge; an open challenge accepts the
// first taker other than the challenger.
func (s *BattleService) AcceptChallenge(ctx context.Context, battleID battletypes.BattleID, opponentID battletypes.UserID) (*battletypes.Battle, error) {
	battle, err := s.BattleDB.GetBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load battle: %w", err)
	}

	if opponentID == battle.ChallengerID {
		return nil, ErrNotInvited
	}
	if battle.OpponentID != nil && *battle.OpponentID != opponentID {
		return nil, ErrNotInvited
	}
	if battle.Status != battletypes.StatusPending {
		return nil, fmt.Errorf("%w: accept from %s/%s", ErrPhaseViolation, battle.Phase, battle.Status)
	}

	deadline := s.clock.NowUTC().Add(battle.TimeLimit)
	rounds := make([]battletypes.Round, 0, battle.TotalRounds)
	for i := 1; i <= battle.TotalRounds; i++ {
		round := battletypes.Round{
			ID:          uuid.New(),
			BattleID:    battleID,
			RoundNumber: i,
			Status:      battletypes.RoundPending,
		}
		if i == 1 {
			round.Status = battletypes.RoundActive
			d := deadline
			round.SubmissionDeadline = &d
		}
		rounds = append(rounds, round)
	}

	applied, err := s.BattleDB.AcceptChallenge(ctx, battleID, opponentID, rounds)
	if err != nil {
		return nil, fmt.Errorf("failed to accept challenge: %w", err)
	}
	if !applied {
		// Lost a race, or the battle moved on while we were validating.
		return nil, fmt.Errorf("%w: accept from %s/%s", ErrPhaseViolation, battle.Phase, battle.Status)
	}

	s.logEvent(ctx, battleID, eventChallengeAccepted, nil, &opponentID)
	s.publishEvent(ctx, battleevents.BattleAccepted, battleevents.BattleAcceptedPayload{
		BattleID:   battleID,
		OpponentID: opponentID,
		RoundCount: battle.TotalRounds,
	})

	updated, err := s.BattleDB.GetBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload battle after accept: %w", err)
	}

	s.logger.InfoContext(ctx, "Challenge accepted",
		"battle_id", battleID,
		"opponent_id", string(opponentID),
	)
	return updated, nil
}
