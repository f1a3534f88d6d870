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

type timeoutFixture struct {
	battle battletypes.Battle
	round  battletypes.Round
}

func activeTimedOutRound(roundNumber int) timeoutFixture {
	opponent := battletypes.UserID("opponent-1")
	battleID := uuid.New()
	return timeoutFixture{
		battle: battletypes.Battle{
			ID:           battleID,
			ChallengerID: "challenger-1",
			OpponentID:   &opponent,
			TotalRounds:  3,
			TimeLimit:    time.Hour,
			Phase:        battletypes.PhaseLive,
			Status:       battletypes.StatusInProgress,
			CurrentRound: roundNumber,
		},
		round: battletypes.Round{
			ID:          uuid.New(),
			BattleID:    battleID,
			RoundNumber: roundNumber,
			Status:      battletypes.RoundActive,
		},
	}
}

func wireTimeoutFixture(deps *testDeps, fx timeoutFixture, subs []battletypes.Submission) {
	deps.rounds.GetRoundFunc = func(_ context.Context, _ battletypes.RoundID) (*battletypes.Round, error) {
		round := fx.round
		return &round, nil
	}
	deps.battles.GetBattleFunc = func(_ context.Context, _ battletypes.BattleID) (*battletypes.Battle, error) {
		battle := fx.battle
		return &battle, nil
	}
	deps.submissions.ListForRoundFunc = func(_ context.Context, _ battletypes.RoundID) ([]battletypes.Submission, error) {
		return subs, nil
	}
}

func TestHandleRoundTimeout_NoSubmissionsCancels(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	wireTimeoutFixture(deps, fx, nil)

	var gotOutcome battletypes.RoundStatus
	var gotForfeited *battletypes.UserID
	deps.rounds.ResolveTimeoutFunc = func(_ context.Context, _ battletypes.RoundID, outcome battletypes.RoundStatus, forfeitedBy *battletypes.UserID) (bool, error) {
		gotOutcome = outcome
		gotForfeited = forfeitedBy
		return true, nil
	}

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))

	assert.Equal(t, battletypes.RoundCancelled, gotOutcome)
	assert.Nil(t, gotForfeited)
}

func TestHandleRoundTimeout_OneSubmissionForfeitsSilentSide(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	wireTimeoutFixture(deps, fx, []battletypes.Submission{
		{RoundID: fx.round.ID, UserID: "challenger-1", Side: battletypes.SideChallenger},
	})

	var gotOutcome battletypes.RoundStatus
	var gotForfeited *battletypes.UserID
	deps.rounds.ResolveTimeoutFunc = func(_ context.Context, _ battletypes.RoundID, outcome battletypes.RoundStatus, forfeitedBy *battletypes.UserID) (bool, error) {
		gotOutcome = outcome
		gotForfeited = forfeitedBy
		return true, nil
	}

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))

	assert.Equal(t, battletypes.RoundForfeited, gotOutcome)
	require.NotNil(t, gotForfeited)
	assert.Equal(t, battletypes.UserID("opponent-1"), *gotForfeited)
}

func TestHandleRoundTimeout_BothSubmittedIsNoOp(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	wireTimeoutFixture(deps, fx, []battletypes.Submission{
		{Side: battletypes.SideChallenger, UserID: "challenger-1"},
		{Side: battletypes.SideOpponent, UserID: "opponent-1"},
	})

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))
	assert.NotContains(t, deps.rounds.trace, "ResolveTimeout")
}

func TestHandleRoundTimeout_NonActiveRoundIsNoOp(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	fx.round.Status = battletypes.RoundVoting
	wireTimeoutFixture(deps, fx, nil)

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))
	assert.Equal(t, []string{"GetRound"}, deps.rounds.trace)
}

func TestHandleRoundTimeout_LostGuardSkipsAdvance(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	wireTimeoutFixture(deps, fx, nil)
	deps.rounds.ResolveTimeoutFunc = func(_ context.Context, _ battletypes.RoundID, _ battletypes.RoundStatus, _ *battletypes.UserID) (bool, error) {
		return false, nil
	}

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))
	assert.NotContains(t, deps.rounds.trace, "ActivateRound")
	assert.NotContains(t, deps.battles.trace, "SetCurrentRound")
}

func TestHandleRoundTimeout_AdvancesToNextRound(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	wireTimeoutFixture(deps, fx, nil)

	var activatedNumber int
	var activatedDeadline time.Time
	deps.rounds.ActivateRoundFunc = func(_ context.Context, battleID battletypes.BattleID, roundNumber int, deadline time.Time) (*battletypes.Round, error) {
		activatedNumber = roundNumber
		activatedDeadline = deadline
		return &battletypes.Round{BattleID: battleID, RoundNumber: roundNumber, Status: battletypes.RoundActive}, nil
	}
	var currentSet int
	deps.battles.SetCurrentRoundFunc = func(_ context.Context, _ battletypes.BattleID, roundNumber int) error {
		currentSet = roundNumber
		return nil
	}

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))

	assert.Equal(t, 2, activatedNumber)
	assert.Equal(t, deps.now.Add(fx.battle.TimeLimit), activatedDeadline)
	assert.Equal(t, 2, currentSet)
}

func TestHandleRoundTimeout_FinalRoundEndsBattle(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(3)
	wireTimeoutFixture(deps, fx, nil)
	deps.votes.ListForBattleFunc = func(_ context.Context, _ battletypes.BattleID) ([]battletypes.Vote, error) {
		return []battletypes.Vote{
			{VoterClass: battletypes.VoterPeer, VoteFor: battletypes.SideOpponent},
		}, nil
	}

	require.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))

	assert.NotContains(t, deps.rounds.trace, "ActivateRound")
	assert.Contains(t, deps.battles.trace, "MarkCompleted")
	assert.Equal(t, 150, deps.xp.Totals["opponent-1"])
	assert.Equal(t, 50, deps.xp.Totals["challenger-1"])
}

func TestHandleRoundTimeout_FinalRoundRaceSwallowsCompletion(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(3)
	wireTimeoutFixture(deps, fx, nil)
	deps.battles.MarkCompletedFunc = func(_ context.Context, _ battletypes.BattleID, _ battletypes.UserID, _ float64, _ time.Time) (bool, error) {
		return false, nil
	}

	assert.NoError(t, service.HandleRoundTimeout(context.Background(), fx.round.ID))
}

func TestCloseVoting_ResolvesAndAdvances(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	fx.round.Status = battletypes.RoundVoting
	wireTimeoutFixture(deps, fx, nil)

	require.NoError(t, service.CloseVoting(context.Background(), fx.round.ID))

	assert.Contains(t, deps.rounds.trace, "MarkResolved")
	assert.Contains(t, deps.rounds.trace, "ActivateRound")
	assert.Contains(t, deps.battles.trace, "SetCurrentRound")
}

func TestCloseVoting_NonVotingRoundIsNoOp(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	wireTimeoutFixture(deps, fx, nil) // round is ACTIVE

	require.NoError(t, service.CloseVoting(context.Background(), fx.round.ID))
	assert.NotContains(t, deps.rounds.trace, "MarkResolved")
}

func TestCloseVoting_LostGuardIsNoOp(t *testing.T) {
	service, deps := newTestService()
	fx := activeTimedOutRound(1)
	fx.round.Status = battletypes.RoundVoting
	wireTimeoutFixture(deps, fx, nil)
	deps.rounds.MarkResolvedFunc = func(_ context.Context, _ battletypes.RoundID) (bool, error) {
		return false, nil
	}

	require.NoError(t, service.CloseVoting(context.Background(), fx.round.ID))
	assert.NotContains(t, deps.rounds.trace, "ActivateRound")
}
