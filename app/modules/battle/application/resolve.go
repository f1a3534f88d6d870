package battleservice

import (
	"fmt"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// Voter class weights. Peers carry the plurality; experts and the AI judge
// split the rest.
const (
	weightPeer   = 40.0
	weightExpert = 30.0
	weightAI     = 30.0
)

// ResolveBattle computes the winner from every vote across every round.
// Pure and deterministic: the same votes always produce the same result.
//
// Each class contributes its weight scaled by the share of that class's
// votes each side received. The max(1, total) guard keeps an empty class at
// zero for both sides instead of dividing by zero; that slightly depresses
// a populated class's influence when another class is empty, and is kept
// deliberately to match the shipped scoring. Exact ties go to the
// challenger.
func ResolveBattle(battle *battletypes.Battle, votes []battletypes.Vote) (*BattleResult, error) {
	if battle.OpponentID == nil {
		return nil, fmt.Errorf("cannot resolve battle %s without an opponent", battle.ID)
	}

	type tally struct{ challenger, opponent, total float64 }
	classes := map[battletypes.VoterClass]*tally{
		battletypes.VoterPeer:   {},
		battletypes.VoterExpert: {},
		battletypes.VoterAI:     {},
	}

	for _, v := range votes {
		t, ok := classes[v.VoterClass]
		if !ok {
			continue
		}
		t.total++
		switch v.VoteFor {
		case battletypes.SideChallenger:
			t.challenger++
		case battletypes.SideOpponent:
			t.opponent++
		}
	}

	share := func(count, total float64) float64 {
		if total < 1 {
			total = 1
		}
		return count / total
	}

	weights := map[battletypes.VoterClass]float64{
		battletypes.VoterPeer:   weightPeer,
		battletypes.VoterExpert: weightExpert,
		battletypes.VoterAI:     weightAI,
	}

	var challengerScore, opponentScore float64
	for class, t := range classes {
		w := weights[class]
		challengerScore += share(t.challenger, t.total) * w
		opponentScore += share(t.opponent, t.total) * w
	}

	result := &BattleResult{
		ChallengerScore: challengerScore,
		OpponentScore:   opponentScore,
	}
	if opponentScore > challengerScore {
		result.WinningSide = battletypes.SideOpponent
		result.WinnerID = *battle.OpponentID
	} else {
		result.WinningSide = battletypes.SideChallenger
		result.WinnerID = battle.ChallengerID
	}
	return result, nil
}
