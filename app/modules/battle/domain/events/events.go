package battleevents

import (
	"encoding/json"
	"fmt"
	"time"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// Stream name for all battle subjects.
const BattleStreamName = "battle"

// Change-feed tables. Topic layout is battle.<table>.<battleID> so a session
// can subscribe to exactly one battle's traffic per table.
const (
	TableBattles     = "battles"
	TableRounds      = "rounds"
	TableSubmissions = "submissions"
	TableVotes       = "votes"
	TableReactions   = "reactions"
	TableComments    = "comments"
	TablePresence    = "presence"
)

// ChangeTopic builds the change-feed topic for one battle and table.
func ChangeTopic(table string, battleID battletypes.BattleID) string {
	return fmt.Sprintf("battle.%s.%s", table, battleID)
}

// Lifecycle events published outside the change feed.
const (
	BattleAccepted  = "battle.accepted"
	BattleWentLive  = "battle.went.live"
	BattleCompleted = "battle.completed"
	RoundTimedOut   = "battle.round.timed.out"
)

// RoundsChanged mirrors every rounds-table change record onto one literal
// topic, so a subscriber can watch all battles without wildcard support
// from the transport.
const RoundsChanged = "battle.rounds.changed"

// Op is the mutation kind carried by a change record.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// ChangeRecord is the wire form of one change-feed event: which table, which
// operation, and the new row encoded as JSON. Consumers decode Row into the
// table's concrete type via the typed accessors below.
type ChangeRecord struct {
	Table    string               `json:"table"`
	Op       Op                   `json:"op"`
	BattleID battletypes.BattleID `json:"battle_id"`
	Row      json.RawMessage      `json:"row"`
	OldRow   json.RawMessage      `json:"old_row,omitempty"`
}

// Battle decodes the record's row as a battle. Fails unless Table is
// TableBattles.
func (r *ChangeRecord) Battle() (*battletypes.Battle, error) {
	if r.Table != TableBattles {
		return nil, fmt.Errorf("change record is for table %q, not battles", r.Table)
	}
	var b battletypes.Battle
	if err := json.Unmarshal(r.Row, &b); err != nil {
		return nil, fmt.Errorf("failed to decode battle row: %w", err)
	}
	return &b, nil
}

// OldBattle decodes the record's previous row, if present.
func (r *ChangeRecord) OldBattle() *battletypes.Battle {
	if r.Table != TableBattles || len(r.OldRow) == 0 {
		return nil
	}
	var b battletypes.Battle
	if err := json.Unmarshal(r.OldRow, &b); err != nil {
		return nil
	}
	return &b
}

// Round decodes the record's row as a round.
func (r *ChangeRecord) Round() (*battletypes.Round, error) {
	if r.Table != TableRounds {
		return nil, fmt.Errorf("change record is for table %q, not rounds", r.Table)
	}
	var rd battletypes.Round
	if err := json.Unmarshal(r.Row, &rd); err != nil {
		return nil, fmt.Errorf("failed to decode round row: %w", err)
	}
	return &rd, nil
}

// Submission decodes the record's row as a submission.
func (r *ChangeRecord) Submission() (*battletypes.Submission, error) {
	if r.Table != TableSubmissions {
		return nil, fmt.Errorf("change record is for table %q, not submissions", r.Table)
	}
	var s battletypes.Submission
	if err := json.Unmarshal(r.Row, &s); err != nil {
		return nil, fmt.Errorf("failed to decode submission row: %w", err)
	}
	return &s, nil
}

// Vote decodes the record's row as a vote.
func (r *ChangeRecord) Vote() (*battletypes.Vote, error) {
	if r.Table != TableVotes {
		return nil, fmt.Errorf("change record is for table %q, not votes", r.Table)
	}
	var v battletypes.Vote
	if err := json.Unmarshal(r.Row, &v); err != nil {
		return nil, fmt.Errorf("failed to decode vote row: %w", err)
	}
	return &v, nil
}

// Reaction decodes the record's row as a reaction.
func (r *ChangeRecord) Reaction() (*battletypes.Reaction, error) {
	if r.Table != TableReactions {
		return nil, fmt.Errorf("change record is for table %q, not reactions", r.Table)
	}
	var re battletypes.Reaction
	if err := json.Unmarshal(r.Row, &re); err != nil {
		return nil, fmt.Errorf("failed to decode reaction row: %w", err)
	}
	return &re, nil
}

// Comment decodes the record's row as a comment.
func (r *ChangeRecord) Comment() (*battletypes.Comment, error) {
	if r.Table != TableComments {
		return nil, fmt.Errorf("change record is for table %q, not comments", r.Table)
	}
	var c battletypes.Comment
	if err := json.Unmarshal(r.Row, &c); err != nil {
		return nil, fmt.Errorf("failed to decode comment row: %w", err)
	}
	return &c, nil
}

// PresencePayload is published on the presence table when the set of
// identities watching a battle changes.
type PresencePayload struct {
	BattleID battletypes.BattleID `json:"battle_id"`
	UserID   battletypes.UserID   `json:"user_id"`
	Joined   bool                 `json:"joined"`
	Count    int                  `json:"count"`
}

// BattleAcceptedPayload announces a challenge acceptance.
type BattleAcceptedPayload struct {
	BattleID   battletypes.BattleID `json:"battle_id"`
	OpponentID battletypes.UserID   `json:"opponent_id"`
	RoundCount int                  `json:"round_count"`
}

// BattleWentLivePayload announces the PREP to LIVE transition.
type BattleWentLivePayload struct {
	BattleID    battletypes.BattleID `json:"battle_id"`
	ActualStart time.Time            `json:"actual_start"`
}

// BattleCompletedPayload announces the final result.
type BattleCompletedPayload struct {
	BattleID     battletypes.BattleID `json:"battle_id"`
	WinnerID     battletypes.UserID   `json:"winner_id"`
	WinningSide  battletypes.Side     `json:"winning_side"`
	WinningScore float64              `json:"winning_score"`
}

// RoundTimedOutPayload announces an autonomous deadline transition.
type RoundTimedOutPayload struct {
	BattleID    battletypes.BattleID    `json:"battle_id"`
	RoundID     battletypes.RoundID     `json:"round_id"`
	RoundNumber int                     `json:"round_number"`
	Outcome     battletypes.RoundStatus `json:"outcome"`
	ForfeitedBy *battletypes.UserID     `json:"forfeited_by,omitempty"`
}
