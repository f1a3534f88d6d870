package battleservice

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

func vote(class battletypes.VoterClass, side battletypes.Side) battletypes.Vote {
	return battletypes.Vote{
		ID:         uuid.New(),
		VoterID:    battletypes.UserID(uuid.NewString()),
		VoterClass: class,
		VoteFor:    side,
	}
}

func twoSidedBattle() *battletypes.Battle {
	opponent := battletypes.UserID("opponent-1")
	return &battletypes.Battle{
		ID:           uuid.New(),
		ChallengerID: "challenger-1",
		OpponentID:   &opponent,
	}
}

func TestResolveBattle_WeightedTally(t *testing.T) {
	battle := twoSidedBattle()

	// Peers split 2-1 for the challenger, the lone expert backs the
	// opponent, no AI judge voted. Challenger: 40*(2/3). Opponent:
	// 40*(1/3) + 30.
	votes := []battletypes.Vote{
		vote(battletypes.VoterPeer, battletypes.SideChallenger),
		vote(battletypes.VoterPeer, battletypes.SideChallenger),
		vote(battletypes.VoterPeer, battletypes.SideOpponent),
		vote(battletypes.VoterExpert, battletypes.SideOpponent),
	}

	result, err := ResolveBattle(battle, votes)
	require.NoError(t, err)

	assert.InDelta(t, 26.6667, result.ChallengerScore, 0.001)
	assert.InDelta(t, 43.3333, result.OpponentScore, 0.001)
	assert.Equal(t, battletypes.SideOpponent, result.WinningSide)
	assert.Equal(t, *battle.OpponentID, result.WinnerID)
	assert.InDelta(t, 43.3333, result.WinningScore(), 0.001)
}

func TestResolveBattle_EmptyClassScoresZero(t *testing.T) {
	battle := twoSidedBattle()

	// One AI vote, nothing else. The max(1,total) guard keeps the empty
	// classes at 0-0 rather than erroring.
	votes := []battletypes.Vote{
		vote(battletypes.VoterAI, battletypes.SideOpponent),
	}

	result, err := ResolveBattle(battle, votes)
	require.NoError(t, err)

	assert.InDelta(t, 0, result.ChallengerScore, 0.001)
	assert.InDelta(t, 30, result.OpponentScore, 0.001)
	assert.Equal(t, battletypes.SideOpponent, result.WinningSide)
}

func TestResolveBattle_TieGoesToChallenger(t *testing.T) {
	battle := twoSidedBattle()

	votes := []battletypes.Vote{
		vote(battletypes.VoterPeer, battletypes.SideChallenger),
		vote(battletypes.VoterPeer, battletypes.SideOpponent),
	}

	result, err := ResolveBattle(battle, votes)
	require.NoError(t, err)

	assert.InDelta(t, result.ChallengerScore, result.OpponentScore, 0.001)
	assert.Equal(t, battletypes.SideChallenger, result.WinningSide)
	assert.Equal(t, battle.ChallengerID, result.WinnerID)
}

func TestResolveBattle_NoVotesStillPicksChallenger(t *testing.T) {
	battle := twoSidedBattle()

	result, err := ResolveBattle(battle, nil)
	require.NoError(t, err)

	assert.Zero(t, result.ChallengerScore)
	assert.Zero(t, result.OpponentScore)
	assert.Equal(t, battletypes.SideChallenger, result.WinningSide)
}

func TestResolveBattle_Deterministic(t *testing.T) {
	battle := twoSidedBattle()
	votes := []battletypes.Vote{
		vote(battletypes.VoterPeer, battletypes.SideChallenger),
		vote(battletypes.VoterExpert, battletypes.SideOpponent),
		vote(battletypes.VoterAI, battletypes.SideChallenger),
		vote(battletypes.VoterPeer, battletypes.SideOpponent),
	}
	reversed := make([]battletypes.Vote, len(votes))
	for i, v := range votes {
		reversed[len(votes)-1-i] = v
	}

	a, err := ResolveBattle(battle, votes)
	require.NoError(t, err)
	b, err := ResolveBattle(battle, reversed)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("result depends on vote order (-first +reversed):\n%s", diff)
	}
}

func TestResolveBattle_UnknownClassIgnored(t *testing.T) {
	battle := twoSidedBattle()
	votes := []battletypes.Vote{
		vote("celebrity", battletypes.SideOpponent),
		vote(battletypes.VoterPeer, battletypes.SideChallenger),
	}

	result, err := ResolveBattle(battle, votes)
	require.NoError(t, err)

	assert.InDelta(t, 40, result.ChallengerScore, 0.001)
	assert.Zero(t, result.OpponentScore)
}

func TestResolveBattle_RequiresOpponent(t *testing.T) {
	battle := &battletypes.Battle{ID: uuid.New(), ChallengerID: "challenger-1"}

	_, err := ResolveBattle(battle, nil)
	require.Error(t, err)
}
