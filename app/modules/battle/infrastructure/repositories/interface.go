package battledb

import (
	"context"
	"time"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// BattleDB is the battles-table slice of the persistence gateway. Conditional
// transitions return false when the guard matched no row, so callers can map
// a lost race to a phase violation without a read-modify-write cycle.
type BattleDB interface {
	CreateBattle(ctx context.Context, battle *battletypes.Battle) error
	GetBattle(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Battle, error)
	GetAggregate(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Aggregate, error)
	// AcceptChallenge flips PENDING to ACCEPTED and creates the round rows in
	// one transaction. Returns false if the battle was not accept-able.
	AcceptChallenge(ctx context.Context, battleID battletypes.BattleID, opponentID battletypes.UserID, rounds []battletypes.Round) (bool, error)
	MarkLive(ctx context.Context, battleID battletypes.BattleID, start time.Time) (bool, error)
	MarkCompleted(ctx context.Context, battleID battletypes.BattleID, winnerID battletypes.UserID, score float64, end time.Time) (bool, error)
	SetCurrentRound(ctx context.Context, battleID battletypes.BattleID, roundNumber int) error
	UpdateSpectatorCount(ctx context.Context, battleID battletypes.BattleID, count int) error
}

// RoundDB is the rounds-table slice of the gateway.
type RoundDB interface {
	GetRound(ctx context.Context, roundID battletypes.RoundID) (*battletypes.Round, error)
	ListRounds(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Round, error)
	// MarkVoting moves ACTIVE to VOTING and stamps the voting deadline.
	MarkVoting(ctx context.Context, roundID battletypes.RoundID, votingDeadline time.Time) (bool, error)
	// ResolveTimeout moves ACTIVE to CANCELLED or FORFEITED. The status guard
	// makes duplicate scheduler ticks no-ops.
	ResolveTimeout(ctx context.Context, roundID battletypes.RoundID, outcome battletypes.RoundStatus, forfeitedBy *battletypes.UserID) (bool, error)
	// MarkResolved moves VOTING to RESOLVED.
	MarkResolved(ctx context.Context, roundID battletypes.RoundID) (bool, error)
	// ActivateRound moves the numbered PENDING round to ACTIVE with a fresh
	// submission deadline and returns the updated row.
	ActivateRound(ctx context.Context, battleID battletypes.BattleID, roundNumber int, deadline time.Time) (*battletypes.Round, error)
}

// SubmissionDB is the submissions-table slice of the gateway.
type SubmissionDB interface {
	// InsertSubmission returns false when the (round, user) unique constraint
	// rejected the row.
	InsertSubmission(ctx context.Context, sub *battletypes.Submission) (bool, error)
	ListForRound(ctx context.Context, roundID battletypes.RoundID) ([]battletypes.Submission, error)
	CountForRound(ctx context.Context, roundID battletypes.RoundID) (int, error)
}

// VoteDB is the votes-table slice of the gateway.
type VoteDB interface {
	// InsertVote returns false when the (round, voter) unique constraint
	// rejected the row.
	InsertVote(ctx context.Context, vote *battletypes.Vote) (bool, error)
	ListForBattle(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Vote, error)
}

// InteractionDB covers reactions and comments.
type InteractionDB interface {
	// ToggleReaction inserts the reaction, or removes it when an identical one
	// already exists. Returns true when the reaction is now present.
	ToggleReaction(ctx context.Context, reaction *battletypes.Reaction) (bool, error)
	InsertComment(ctx context.Context, comment *battletypes.Comment) error
	SoftDeleteComment(ctx context.Context, commentID uuid.UUID, userID battletypes.UserID) (bool, error)
	ListComments(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Comment, error)
}

// EventLogDB is the append-only lifecycle audit log. Writes are best-effort.
type EventLogDB interface {
	AppendEvent(ctx context.Context, battleID battletypes.BattleID, eventType string, data map[string]any, userID *battletypes.UserID) error
}
