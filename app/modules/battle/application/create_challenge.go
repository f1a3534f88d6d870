package battleservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battleutil "github.com/cypher-arena/battle-engine/app/modules/battle/utils"
)

const eventChallengeCreated = "CHALLENGE_CREATED"

// CreateChallenge opens a new battle in PREP/PENDING. OpponentID may be nil
// for an open challenge that any identity can accept.
func (s *BattleService) CreateChallenge(ctx context.Context, input CreateChallengeInput) (*battletypes.Battle, error) {
	if input.ChallengerID == "" {
		return nil, fmt.Errorf("missing challenger identity")
	}
	if input.OpponentID != nil && *input.OpponentID == input.ChallengerID {
		return nil, fmt.Errorf("challenger cannot challenge themselves")
	}
	if input.TotalRounds < 1 {
		return nil, fmt.Errorf("total rounds must be at least 1, got %d", input.TotalRounds)
	}
	if input.BarsPerRound < 1 {
		return nil, fmt.Errorf("bars per round must be at least 1, got %d", input.BarsPerRound)
	}

	timeLimit, err := battleutil.ParseTimeLimit(input.TimeLimit, s.clock)
	if err != nil {
		return nil, fmt.Errorf("invalid time limit: %w", err)
	}

	now := s.clock.NowUTC()
	battle := &battletypes.Battle{
		ID:            uuid.New(),
		ChallengerID:  input.ChallengerID,
		OpponentID:    input.OpponentID,
		TotalRounds:   input.TotalRounds,
		BarsPerRound:  input.BarsPerRound,
		TimeLimit:     timeLimit,
		StakeAmount:   input.StakeAmount,
		StakeCurrency: input.StakeCurrency,
		Phase:         battletypes.PhasePrep,
		Status:        battletypes.StatusPending,
		CurrentRound:  1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.BattleDB.CreateBattle(ctx, battle); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	s.logEvent(ctx, battle.ID, eventChallengeCreated, map[string]any{
		"total_rounds":   battle.TotalRounds,
		"bars_per_round": battle.BarsPerRound,
	}, &input.ChallengerID)

	s.logger.InfoContext(ctx, "Challenge created",
		"battle_id", battle.ID,
		"challenger_id", string(battle.ChallengerID),
		"total_rounds", battle.TotalRounds,
	)
	return battle, nil
}
