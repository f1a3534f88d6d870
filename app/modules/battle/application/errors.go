package battleservice

import "errors"

// Validation and state errors returned synchronously to callers. None of
// them leaves partial state behind.
var (
	// ErrPhaseViolation means a lifecycle transition was attempted from an
	// illegal source state. The attempt is a no-op.
	ErrPhaseViolation = errors.New("illegal battle phase transition")

	// ErrNotInvited means someone other than the challenged identity tried
	// to accept.
	ErrNotInvited = errors.New("only the challenged opponent can accept")

	// ErrNotParticipant means the caller is neither challenger nor opponent.
	ErrNotParticipant = errors.New("caller is not a battle participant")

	// ErrNoActiveRound means the targeted round is not accepting submissions.
	ErrNoActiveRound = errors.New("no active round")

	// ErrDuplicateSubmission means a submission already exists for this
	// round and participant. Covers the loser of a near-simultaneous race.
	ErrDuplicateSubmission = errors.New("already submitted for this round")

	// ErrLineCountMismatch means the submitted bars do not match the
	// battle's configured bars per round.
	ErrLineCountMismatch = errors.New("submission line count does not match bars per round")

	// ErrNotVotingPhase means the round is not open for voting.
	ErrNotVotingPhase = errors.New("voting not open for this round")

	// ErrSelfVote means a battle participant tried to vote on their own
	// battle.
	ErrSelfVote = errors.New("participants cannot vote on their own battle")

	// ErrDuplicateVote means a vote already exists for this round and voter.
	ErrDuplicateVote = errors.New("already voted on this round")
)

func isPhaseViolation(err error) bool {
	return errors.Is(err, ErrPhaseViolation)
}
