package battleservice

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

func TestGoLive_MarksBattleLive(t *testing.T) {
	service, deps := newTestService()

	var liveStart time.Time
	deps.battles.MarkLiveFunc = func(_ context.Context, _ battletypes.BattleID, start time.Time) (bool, error) {
		liveStart = start
		return true, nil
	}

	require.NoError(t, service.GoLive(context.Background(), uuid.New()))

	assert.Equal(t, deps.now, liveStart)
	assert.Contains(t, deps.eventLog.Events, "BATTLE_WENT_LIVE")
}

func TestGoLive_RejectedGuardIsPhaseViolation(t *testing.T) {
	service, deps := newTestService()

	deps.battles.MarkLiveFunc = func(_ context.Context, _ battletypes.BattleID, _ time.Time) (bool, error) {
		return false, nil
	}
	deps.battles.GetBattleFunc = func(_ context.Context, battleID battletypes.BattleID) (*battletypes.Battle, error) {
		return &battletypes.Battle{
			ID:     battleID,
			Phase:  battletypes.PhaseFollowup,
			Status: battletypes.StatusCompleted,
		}, nil
	}

	err := service.GoLive(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPhaseViolation)
	assert.NotContains(t, deps.eventLog.Events, "BATTLE_WENT_LIVE")
}
