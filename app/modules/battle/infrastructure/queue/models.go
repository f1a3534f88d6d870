package battlequeue

import (
	"github.com/google/uuid"
)

// Deadline stages a scheduled job can resolve.
const (
	StageSubmission = "submission"
	StageVoting     = "voting"
)

// RoundDeadlineJob fires when a round's submission or voting window elapses.
// It is the server-side backstop for the in-session scheduler: the resolution
// it triggers is status-guarded, so firing against an already-resolved round
// is a no-op.
type RoundDeadlineJob struct {
	BattleID uuid.UUID `json:"battle_id"`
	RoundID  uuid.UUID `json:"round_id"`
	Stage    string    `json:"stage"`
}

// Kind returns the job type identifier for River.
func (RoundDeadlineJob) Kind() string { return "battle_round_deadline" }

// XPAwardJob carries one reward grant to the platform XP service. Awards ride
// the queue so a reward-service outage never blocks a battle operation; River
// retries with backoff until the grant lands.
type XPAwardJob struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// Kind returns the job type identifier for River.
func (XPAwardJob) Kind() string { return "battle_xp_award" }

// JobInfo describes a scheduled job for debugging and monitoring.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
