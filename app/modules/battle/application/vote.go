package battleservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// CastVote records one vote on the battle's current round.
func (s *BattleService) CastVote(ctx context.Context, input VoteInput) (*battletypes.Vote, error) {
	agg, err := s.BattleDB.GetAggregate(ctx, input.BattleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load battle: %w", err)
	}

	if agg.Battle.IsParticipant(input.VoterID) {
		return nil, ErrSelfVote
	}

	round := agg.CurrentRound()
	if round == nil || round.Status != battletypes.RoundVoting {
		return nil, ErrNotVotingPhase
	}

	if input.VoteFor != battletypes.SideChallenger && input.VoteFor != battletypes.SideOpponent {
		return nil, fmt.Errorf("invalid vote side: %q", input.VoteFor)
	}
	switch input.VoterClass {
	case battletypes.VoterPeer, battletypes.VoterExpert, battletypes.VoterAI:
	default:
		return nil, fmt.Errorf("invalid voter class: %q", input.VoterClass)
	}

	vote := &battletypes.Vote{
		ID:         uuid.New(),
		RoundID:    round.ID,
		BattleID:   input.BattleID,
		VoterID:    input.VoterID,
		VoterClass: input.VoterClass,
		VoteFor:    input.VoteFor,
		SubScores:  input.SubScores,
		CreatedAt:  s.clock.NowUTC(),
	}

	inserted, err := s.VoteDB.InsertVote(ctx, vote)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	if !inserted {
		return nil, ErrDuplicateVote
	}

	s.awardXP(ctx, input.VoterID, XPBattleVote, "battle_vote")

	s.logger.InfoContext(ctx, "Vote recorded",
		"battle_id", input.BattleID,
		"round_number", round.RoundNumber,
		"voter_class", string(input.VoterClass),
	)
	return vote, nil
}
