// types.go
package battletypes

import (
	"time"

	"github.com/google/uuid"
)

// UserID identifies a platform user.
type UserID string

// BattleID identifies a battle.
type BattleID = uuid.UUID

// RoundID identifies a round within a battle.
type RoundID = uuid.UUID

// Phase represents the top-level battle lifecycle stage.
type Phase string

const (
	PhasePrep     Phase = "PREP"
	PhaseLive     Phase = "LIVE"
	PhaseFollowup Phase = "FOLLOWUP"
)

// Status represents the battle status within a phase.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// RoundStatus represents the state of a single round.
type RoundStatus string

const (
	RoundPending   RoundStatus = "PENDING"
	RoundActive    RoundStatus = "ACTIVE"
	RoundVoting    RoundStatus = "VOTING"
	RoundResolved  RoundStatus = "RESOLVED"
	RoundCancelled RoundStatus = "CANCELLED"
	RoundForfeited RoundStatus = "FORFEITED"
)

// Side identifies which corner of the battle a user occupies.
type Side string

const (
	SideChallenger Side = "challenger"
	SideOpponent   Side = "opponent"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideChallenger {
		return SideOpponent
	}
	return SideChallenger
}

// VoterClass is the weighted class a vote belongs to.
type VoterClass string

const (
	VoterPeer   VoterClass = "peer"
	VoterExpert VoterClass = "expert"
	VoterAI     VoterClass = "ai"
)

// ReactionTarget is what a reaction points at.
type ReactionTarget string

const (
	TargetBattle     ReactionTarget = "battle"
	TargetRound      ReactionTarget = "round"
	TargetSubmission ReactionTarget = "submission"
)

// Battle is the root entity of one battle.
type Battle struct {
	ID             BattleID      `json:"id"`
	ChallengerID   UserID        `json:"challenger_id"`
	OpponentID     *UserID       `json:"opponent_id"`
	TotalRounds    int           `json:"total_rounds"`
	BarsPerRound   int           `json:"bars_per_round"`
	TimeLimit      time.Duration `json:"time_limit"`
	StakeAmount    int64         `json:"stake_amount"`
	StakeCurrency  string        `json:"stake_currency"`
	Phase          Phase         `json:"phase"`
	Status         Status        `json:"status"`
	CurrentRound   int           `json:"current_round"`
	WinnerID       *UserID       `json:"winner_id"`
	WinningScore   float64       `json:"winning_score"`
	SpectatorCount int           `json:"spectator_count"`
	ActualStart    *time.Time    `json:"actual_start"`
	ActualEnd      *time.Time    `json:"actual_end"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsParticipant reports whether userID is the challenger or the opponent.
func (b *Battle) IsParticipant(userID UserID) bool {
	return b.SideOf(userID) != ""
}

// SideOf returns the side userID occupies, or "" for spectators.
func (b *Battle) SideOf(userID UserID) Side {
	if b.ChallengerID == userID {
		return SideChallenger
	}
	if b.OpponentID != nil && *b.OpponentID == userID {
		return SideOpponent
	}
	return ""
}

// ParticipantOn returns the user on the given side, if set.
func (b *Battle) ParticipantOn(side Side) *UserID {
	if side == SideChallenger {
		id := b.ChallengerID
		return &id
	}
	return b.OpponentID
}

// Round is one timed exchange within a battle.
type Round struct {
	ID                 RoundID     `json:"id"`
	BattleID           BattleID    `json:"battle_id"`
	RoundNumber        int         `json:"round_number"`
	Status             RoundStatus `json:"status"`
	SubmissionDeadline *time.Time  `json:"submission_deadline"`
	VotingDeadline     *time.Time  `json:"voting_deadline"`
	ForfeitedBy        *UserID     `json:"forfeited_by"`
}

// IsOpen reports whether the round still accepts submissions or votes.
func (r *Round) IsOpen() bool {
	return r.Status == RoundActive || r.Status == RoundVoting
}

// Submission is one participant's bars for one round.
type Submission struct {
	ID        uuid.UUID `json:"id"`
	RoundID   RoundID   `json:"round_id"`
	BattleID  BattleID  `json:"battle_id"`
	UserID    UserID    `json:"user_id"`
	Side      Side      `json:"side"`
	Bars      []string  `json:"bars"`
	LineCount int       `json:"line_count"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote is one voter's pick for one round.
type Vote struct {
	ID         uuid.UUID          `json:"id"`
	RoundID    RoundID            `json:"round_id"`
	BattleID   BattleID           `json:"battle_id"`
	VoterID    UserID             `json:"voter_id"`
	VoterClass VoterClass         `json:"voter_class"`
	VoteFor    Side               `json:"vote_for"`
	SubScores  map[string]float64 `json:"sub_scores,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Reaction is a lightweight emote on a battle, round, or submission.
type Reaction struct {
	ID         uuid.UUID      `json:"id"`
	BattleID   BattleID       `json:"battle_id"`
	UserID     UserID         `json:"user_id"`
	Kind       string         `json:"kind"`
	TargetType ReactionTarget `json:"target_type"`
	TargetID   *uuid.UUID     `json:"target_id"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Comment is a spectator or participant comment on a battle.
type Comment struct {
	ID          uuid.UUID  `json:"id"`
	BattleID    BattleID   `json:"battle_id"`
	UserID      UserID     `json:"user_id"`
	Content     string     `json:"content"`
	RoundNumber *int       `json:"round_number"`
	DeletedAt   *time.Time `json:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Aggregate is the full battle graph a session works from.
type Aggregate struct {
	Battle      Battle       `json:"battle"`
	Rounds      []Round      `json:"rounds"`
	Submissions []Submission `json:"submissions"`
	Votes       []Vote       `json:"votes"`
}

// Clone returns a deep copy that stays valid while the original keeps
// changing.
func (a *Aggregate) Clone() *Aggregate {
	c := *a
	c.Rounds = append([]Round(nil), a.Rounds...)
	c.Submissions = append([]Submission(nil), a.Submissions...)
	c.Votes = append([]Vote(nil), a.Votes...)
	return &c
}

// CurrentRound returns the round matching Battle.CurrentRound, or nil.
func (a *Aggregate) CurrentRound() *Round {
	for i := range a.Rounds {
		if a.Rounds[i].RoundNumber == a.Battle.CurrentRound {
			return &a.Rounds[i]
		}
	}
	return nil
}

// RoundByID returns the round with the given id, or nil.
func (a *Aggregate) RoundByID(id RoundID) *Round {
	for i := range a.Rounds {
		if a.Rounds[i].ID == id {
			return &a.Rounds[i]
		}
	}
	return nil
}

// SubmissionsFor returns the submissions recorded for one round.
func (a *Aggregate) SubmissionsFor(roundID RoundID) []Submission {
	var subs []Submission
	for _, s := range a.Submissions {
		if s.RoundID == roundID {
			subs = append(subs, s)
		}
	}
	return subs
}
