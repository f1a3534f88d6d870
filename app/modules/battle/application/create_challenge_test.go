package battleservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

func TestCreateChallenge_OpensPendingBattle(t *testing.T) {
	service, deps := newTestService()

	opponent := battletypes.UserID("opponent-1")
	battle, err := service.CreateChallenge(context.Background(), CreateChallengeInput{
		ChallengerID: "challenger-1",
		OpponentID:   &opponent,
		TotalRounds:  3,
		BarsPerRound: 16,
		TimeLimit:    "24h",
	})
	require.NoError(t, err)

	assert.Equal(t, battletypes.PhasePrep, battle.Phase)
	assert.Equal(t, battletypes.StatusPending, battle.Status)
	assert.Equal(t, 1, battle.CurrentRound)
	assert.Equal(t, 24*time.Hour, battle.TimeLimit)
	assert.Equal(t, deps.now, battle.CreatedAt)
	assert.Contains(t, deps.battles.trace, "CreateBattle")
	assert.Contains(t, deps.eventLog.Events, "CHALLENGE_CREATED")
}

func TestCreateChallenge_AllowsOpenChallenge(t *testing.T) {
	service, _ := newTestService()

	battle, err := service.CreateChallenge(context.Background(), CreateChallengeInput{
		ChallengerID: "challenger-1",
		TotalRounds:  1,
		BarsPerRound: 8,
		TimeLimit:    "45m",
	})
	require.NoError(t, err)
	assert.Nil(t, battle.OpponentID)
}

func TestCreateChallenge_ParsesNaturalLanguageLimit(t *testing.T) {
	service, _ := newTestService()

	battle, err := service.CreateChallenge(context.Background(), CreateChallengeInput{
		ChallengerID: "challenger-1",
		TotalRounds:  1,
		BarsPerRound: 4,
		TimeLimit:    "in 2 hours",
	})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, battle.TimeLimit)
}

func TestCreateChallenge_RejectsBadInput(t *testing.T) {
	service, deps := newTestService()
	self := battletypes.UserID("challenger-1")

	tests := []struct {
		name  string
		input CreateChallengeInput
	}{
		{
			name:  "missing challenger",
			input: CreateChallengeInput{TotalRounds: 3, BarsPerRound: 16, TimeLimit: "1h"},
		},
		{
			name:  "self challenge",
			input: CreateChallengeInput{ChallengerID: "challenger-1", OpponentID: &self, TotalRounds: 3, BarsPerRound: 16, TimeLimit: "1h"},
		},
		{
			name:  "zero rounds",
			input: CreateChallengeInput{ChallengerID: "challenger-1", TotalRounds: 0, BarsPerRound: 16, TimeLimit: "1h"},
		},
		{
			name:  "zero bars",
			input: CreateChallengeInput{ChallengerID: "challenger-1", TotalRounds: 3, BarsPerRound: 0, TimeLimit: "1h"},
		},
		{
			name:  "negative duration",
			input: CreateChallengeInput{ChallengerID: "challenger-1", TotalRounds: 3, BarsPerRound: 16, TimeLimit: "-1h"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateChallenge(context.Background(), tc.input)
			assert.Error(t, err)
		})
	}
	assert.NotContains(t, deps.battles.trace, "CreateBattle")
}
