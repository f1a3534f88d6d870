package battleservice

import (
	"context"
	"fmt"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

const eventBattleWentLive = "BATTLE_WENT_LIVE"

// GoLive moves an accepted battle from PREP into LIVE play.
func (s *BattleService) GoLive(ctx context.Context, battleID battletypes.BattleID) error {
	start := s.clock.NowUTC()

	applied, err := s.BattleDB.MarkLive(ctx, battleID, start)
	if err != nil {
		return fmt.Errorf("failed to go live: %w", err)
	}
	if !applied {
		battle, err := s.BattleDB.GetBattle(ctx, battleID)
		if err != nil {
			return fmt.Errorf("%w: go-live rejected", ErrPhaseViolation)
		}
		return fmt.Errorf("%w: go-live from %s/%s", ErrPhaseViolation, battle.Phase, battle.Status)
	}

	s.logEvent(ctx, battleID, eventBattleWentLive, nil, nil)
	s.publishEvent(ctx, battleevents.BattleWentLive, battleevents.BattleWentLivePayload{
		BattleID:    battleID,
		ActualStart: start,
	})

	s.logger.InfoContext(ctx, "Battle went live", "battle_id", battleID)
	return nil
}
