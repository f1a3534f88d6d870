package battleservice

import (
	"context"
	"fmt"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

const eventBattleEnded = "BATTLE_ENDED"

// EndBattle closes the battle into FOLLOWUP/COMPLETED: resolves the winner
// from all recorded votes, persists the result, and requests the prize XP.
// The XP calls are best-effort and never block completion.
func (s *BattleService) EndBattle(ctx context.Context, battleID battletypes.BattleID) (*BattleResult, error) {
	battle, err := s.BattleDB.GetBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load battle: %w", err)
	}
	if battle.Status == battletypes.StatusCompleted {
		return nil, fmt.Errorf("%w: battle already completed", ErrPhaseViolation)
	}

	votes, err := s.VoteDB.ListForBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}

	result, err := ResolveBattle(battle, votes)
	if err != nil {
		return nil, err
	}

	end := s.clock.NowUTC()
	applied, err := s.BattleDB.MarkCompleted(ctx, battleID, result.WinnerID, result.WinningScore(), end)
	if err != nil {
		return nil, fmt.Errorf("failed to complete battle: %w", err)
	}
	if !applied {
		// Another session or the deadline worker beat us to it.
		return nil, fmt.Errorf("%w: battle already completed", ErrPhaseViolation)
	}

	var loserID battletypes.UserID
	if result.WinningSide == battletypes.SideChallenger {
		loserID = *battle.OpponentID
	} else {
		loserID = battle.ChallengerID
	}
	s.awardXP(ctx, result.WinnerID, XPBattleWin, "battle_win")
	s.awardXP(ctx, loserID, XPBattleLoss, "battle_loss")

	s.logEvent(ctx, battleID, eventBattleEnded, map[string]any{
		"winner_id":     string(result.WinnerID),
		"winning_score": result.WinningScore(),
	}, nil)
	s.publishEvent(ctx, battleevents.BattleCompleted, battleevents.BattleCompletedPayload{
		BattleID:     battleID,
		WinnerID:     result.WinnerID,
		WinningSide:  result.WinningSide,
		WinningScore: result.WinningScore(),
	})

	s.logger.InfoContext(ctx, "Battle completed",
		"battle_id", battleID,
		"winner_id", string(result.WinnerID),
		"winning_score", result.WinningScore(),
	)
	return result, nil
}
