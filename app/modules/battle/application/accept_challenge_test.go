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

func pendingBattle(opponentID *battletypes.UserID) *battletypes.Battle {
	return &battletypes.Battle{
		ID:           uuid.New(),
		ChallengerID: "challenger-1",
		OpponentID:   opponentID,
		TotalRounds:  3,
		BarsPerRound: 16,
		TimeLimit:    24 * time.Hour,
		Phase:        battletypes.PhasePrep,
		Status:       battletypes.StatusPending,
		CurrentRound: 1,
	}
}

func TestAcceptChallenge_CreatesRounds(t *testing.T) {
	service, deps := newTestService()
	invited := battletypes.UserID("opponent-1")
	battle := pendingBattle(&invited)

	var createdRounds []battletypes.Round
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		return battle, nil
	}
	deps.battles.AcceptChallengeFunc = func(_ context.Context, _ battletypes.BattleID, _ battletypes.UserID, rounds []battletypes.Round) (bool, error) {
		createdRounds = rounds
		return true, nil
	}

	_, err := service.AcceptChallenge(context.Background(), battle.ID, invited)
	require.NoError(t, err)

	require.Len(t, createdRounds, 3)
	first := createdRounds[0]
	assert.Equal(t, battletypes.RoundActive, first.Status)
	require.NotNil(t, first.SubmissionDeadline)
	assert.Equal(t, deps.now.Add(battle.TimeLimit), *first.SubmissionDeadline)
	for _, round := range createdRounds[1:] {
		assert.Equal(t, battletypes.RoundPending, round.Status)
		assert.Nil(t, round.SubmissionDeadline)
	}
	assert.Contains(t, deps.eventLog.Events, "CHALLENGE_ACCEPTED")
}

func TestAcceptChallenge_RejectsWrongIdentity(t *testing.T) {
	service, deps := newTestService()
	invited := battletypes.UserID("opponent-1")
	battle := pendingBattle(&invited)
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		return battle, nil
	}

	_, err := service.AcceptChallenge(context.Background(), battle.ID, "someone-else")
	assert.ErrorIs(t, err, ErrNotInvited)
	assert.NotContains(t, deps.battles.trace, "AcceptChallenge")
}

func TestAcceptChallenge_RejectsChallengerSelfAccept(t *testing.T) {
	service, deps := newTestService()
	battle := pendingBattle(nil)
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		return battle, nil
	}

	_, err := service.AcceptChallenge(context.Background(), battle.ID, battle.ChallengerID)
	assert.ErrorIs(t, err, ErrNotInvited)
}

func TestAcceptChallenge_OpenChallengeTakesAnyone(t *testing.T) {
	service, deps := newTestService()
	battle := pendingBattle(nil)
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		return battle, nil
	}

	_, err := service.AcceptChallenge(context.Background(), battle.ID, "walk-up-opponent")
	require.NoError(t, err)
	assert.Contains(t, deps.battles.trace, "AcceptChallenge")
}

func TestAcceptChallenge_RejectsNonPending(t *testing.T) {
	service, deps := newTestService()
	invited := battletypes.UserID("opponent-1")
	battle := pendingBattle(&invited)
	battle.Status = battletypes.StatusAccepted
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		return battle, nil
	}

	_, err := service.AcceptChallenge(context.Background(), battle.ID, invited)
	assert.ErrorIs(t, err, ErrPhaseViolation)
}

func TestAcceptChallenge_LostRaceIsPhaseViolation(t *testing.T) {
	service, deps := newTestService()
	invited := battletypes.UserID("opponent-1")
	battle := pendingBattle(&invited)
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		return battle, nil
	}
	deps.battles.AcceptChallengeFunc = func(_ context.Context, _ battletypes.BattleID, _ battletypes.UserID, _ []battletypes.Round) (bool, error) {
		return false, nil
	}

	_, err := service.AcceptChallenge(context.Background(), battle.ID, invited)
	assert.ErrorIs(t, err, ErrPhaseViolation)
}
