package battleservice

import (
	"context"
	"io"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// CreateChallengeInput describes a new challenge in PREP/PENDING.
type CreateChallengeInput struct {
	ChallengerID  battletypes.UserID
	OpponentID    *battletypes.UserID
	TotalRounds   int
	BarsPerRound  int
	TimeLimit     string // duration or natural language, e.g. "24h", "in 2 hours"
	StakeAmount   int64
	StakeCurrency string
}

// SubmitInput carries one participant's bars for the current round.
type SubmitInput struct {
	BattleID battletypes.BattleID
	UserID   battletypes.UserID
	Bars     []string
	// Audio is optional; when set it is uploaded before the submission is
	// persisted.
	Audio         io.Reader
	AudioFileName string
}

// VoteInput carries one voter's pick for the current round.
type VoteInput struct {
	BattleID   battletypes.BattleID
	VoterID    battletypes.UserID
	VoterClass battletypes.VoterClass
	VoteFor    battletypes.Side
	SubScores  map[string]float64
}

// ReactionInput identifies a reaction toggle.
type ReactionInput struct {
	BattleID   battletypes.BattleID
	UserID     battletypes.UserID
	Kind       string
	TargetType battletypes.ReactionTarget
	TargetID   *uuid.UUID
}

// CommentInput carries one new comment.
type CommentInput struct {
	BattleID    battletypes.BattleID
	UserID      battletypes.UserID
	Content     string
	RoundNumber *int
}

// BattleResult is the tally engine's output for a finished battle.
type BattleResult struct {
	WinnerID        battletypes.UserID
	WinningSide     battletypes.Side
	ChallengerScore float64
	OpponentScore   float64
}

// WinningScore returns the score of the winning side.
func (r *BattleResult) WinningScore() float64 {
	if r.WinningSide == battletypes.SideChallenger {
		return r.ChallengerScore
	}
	return r.OpponentScore
}

// Service is the battle module's application surface: the phase controller,
// submission gatekeeper, vote tally engine, and interaction writes.
type Service interface {
	CreateChallenge(ctx context.Context, input CreateChallengeInput) (*battletypes.Battle, error)
	AcceptChallenge(ctx context.Context, battleID battletypes.BattleID, opponentID battletypes.UserID) (*battletypes.Battle, error)
	GoLive(ctx context.Context, battleID battletypes.BattleID) error
	EndBattle(ctx context.Context, battleID battletypes.BattleID) (*BattleResult, error)

	SubmitBars(ctx context.Context, input SubmitInput) (*battletypes.Submission, error)
	CastVote(ctx context.Context, input VoteInput) (*battletypes.Vote, error)

	HandleRoundTimeout(ctx context.Context, roundID battletypes.RoundID) error
	CloseVoting(ctx context.Context, roundID battletypes.RoundID) error

	ToggleReaction(ctx context.Context, input ReactionInput) (bool, error)
	PostComment(ctx context.Context, input CommentInput) (*battletypes.Comment, error)
	DeleteComment(ctx context.Context, commentID uuid.UUID, userID battletypes.UserID) error

	GetAggregate(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Aggregate, error)
	ListComments(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Comment, error)
}
