package battledb

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// Battle is the bun model for the battles table.
type Battle struct {
	bun.BaseModel `bun:"table:battles,alias:b"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid"`
	ChallengerID     string     `bun:"challenger_id,notnull"`
	OpponentID       *string    `bun:"opponent_id,nullzero"`
	TotalRounds      int        `bun:"total_rounds,notnull"`
	BarsPerRound     int        `bun:"bars_per_round,notnull"`
	TimeLimitSeconds int64      `bun:"time_limit_seconds,notnull"`
	StakeAmount      int64      `bun:"stake_amount,notnull,default:0"`
	StakeCurrency    string     `bun:"stake_currency,nullzero"`
	Phase            string     `bun:"phase,notnull"`
	Status           string     `bun:"status,notnull"`
	CurrentRound     int        `bun:"current_round,notnull,default:1"`
	WinnerID         *string    `bun:"winner_id,nullzero"`
	WinningScore     float64    `bun:"winning_score,nullzero"`
	SpectatorCount   int        `bun:"spectator_count,notnull,default:0"`
	ActualStart      *time.Time `bun:"actual_start,nullzero"`
	ActualEnd        *time.Time `bun:"actual_end,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Round is the bun model for the battle_rounds table.
type Round struct {
	bun.BaseModel `bun:"table:battle_rounds,alias:br"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid"`
	BattleID           uuid.UUID  `bun:"battle_id,notnull,type:uuid"`
	RoundNumber        int        `bun:"round_number,notnull"`
	Status             string     `bun:"status,notnull"`
	SubmissionDeadline *time.Time `bun:"submission_deadline,nullzero"`
	VotingDeadline     *time.Time `bun:"voting_deadline,nullzero"`
	ForfeitedBy        *string    `bun:"forfeited_by,nullzero"`
}

// Submission is the bun model for the battle_submissions table.
// (round_id, user_id) carries a unique constraint; the insert path relies on
// it for duplicate rejection.
type Submission struct {
	bun.BaseModel `bun:"table:battle_submissions,alias:bs"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	RoundID   uuid.UUID `bun:"round_id,notnull,type:uuid"`
	BattleID  uuid.UUID `bun:"battle_id,notnull,type:uuid"`
	UserID    string    `bun:"user_id,notnull"`
	Side      string    `bun:"side,notnull"`
	Bars      []string  `bun:"bars,type:jsonb"`
	LineCount int       `bun:"line_count,notnull"`
	AudioURL  string    `bun:"audio_url,nullzero"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Vote is the bun model for the battle_votes table. (round_id, voter_id) is
// unique.
type Vote struct {
	bun.BaseModel `bun:"table:battle_votes,alias:bv"`

	ID         uuid.UUID          `bun:"id,pk,type:uuid"`
	RoundID    uuid.UUID          `bun:"round_id,notnull,type:uuid"`
	BattleID   uuid.UUID          `bun:"battle_id,notnull,type:uuid"`
	VoterID    string             `bun:"voter_id,notnull"`
	VoterClass string             `bun:"voter_class,notnull"`
	VoteFor    string             `bun:"vote_for,notnull"`
	SubScores  map[string]float64 `bun:"sub_scores,type:jsonb,nullzero"`
	CreatedAt  time.Time          `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Reaction is the bun model for the battle_reactions table. The full
// (battle_id, user_id, kind, target_type, target_id) tuple is unique; a
// second identical insert toggles the reaction off.
type Reaction struct {
	bun.BaseModel `bun:"table:battle_reactions,alias:brx"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	BattleID   uuid.UUID  `bun:"battle_id,notnull,type:uuid"`
	UserID     string     `bun:"user_id,notnull"`
	Kind       string     `bun:"kind,notnull"`
	TargetType string     `bun:"target_type,notnull"`
	TargetID   *uuid.UUID `bun:"target_id,nullzero,type:uuid"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Comment is the bun model for the battle_comments table.
type Comment struct {
	bun.BaseModel `bun:"table:battle_comments,alias:bc"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	BattleID    uuid.UUID  `bun:"battle_id,notnull,type:uuid"`
	UserID      string     `bun:"user_id,notnull"`
	Content     string     `bun:"content,notnull"`
	RoundNumber *int       `bun:"round_number,nullzero"`
	DeletedAt   *time.Time `bun:"deleted_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// EventLogEntry is the bun model for the append-only battle_event_log table.
type EventLogEntry struct {
	bun.BaseModel `bun:"table:battle_event_log,alias:bel"`

	ID        int64          `bun:"id,pk,autoincrement"`
	BattleID  uuid.UUID      `bun:"battle_id,notnull,type:uuid"`
	EventType string         `bun:"event_type,notnull"`
	EventData map[string]any `bun:"event_data,type:jsonb,nullzero"`
	UserID    *string        `bun:"user_id,nullzero"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m *Battle) toDomain() *battletypes.Battle {
	b := &battletypes.Battle{
		ID:             m.ID,
		ChallengerID:   battletypes.UserID(m.ChallengerID),
		TotalRounds:    m.TotalRounds,
		BarsPerRound:   m.BarsPerRound,
		TimeLimit:      time.Duration(m.TimeLimitSeconds) * time.Second,
		StakeAmount:    m.StakeAmount,
		StakeCurrency:  m.StakeCurrency,
		Phase:          battletypes.Phase(m.Phase),
		Status:         battletypes.Status(m.Status),
		CurrentRound:   m.CurrentRound,
		WinningScore:   m.WinningScore,
		SpectatorCount: m.SpectatorCount,
		ActualStart:    m.ActualStart,
		ActualEnd:      m.ActualEnd,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.OpponentID != nil {
		id := battletypes.UserID(*m.OpponentID)
		b.OpponentID = &id
	}
	if m.WinnerID != nil {
		id := battletypes.UserID(*m.WinnerID)
		b.WinnerID = &id
	}
	return b
}

func battleModel(b *battletypes.Battle) *Battle {
	m := &Battle{
		ID:               b.ID,
		ChallengerID:     string(b.ChallengerID),
		TotalRounds:      b.TotalRounds,
		BarsPerRound:     b.BarsPerRound,
		TimeLimitSeconds: int64(b.TimeLimit / time.Second),
		StakeAmount:      b.StakeAmount,
		StakeCurrency:    b.StakeCurrency,
		Phase:            string(b.Phase),
		Status:           string(b.Status),
		CurrentRound:     b.CurrentRound,
		WinningScore:     b.WinningScore,
		SpectatorCount:   b.SpectatorCount,
		ActualStart:      b.ActualStart,
		ActualEnd:        b.ActualEnd,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
	if b.OpponentID != nil {
		s := string(*b.OpponentID)
		m.OpponentID = &s
	}
	if b.WinnerID != nil {
		s := string(*b.WinnerID)
		m.WinnerID = &s
	}
	return m
}

func (m *Round) toDomain() *battletypes.Round {
	r := &battletypes.Round{
		ID:                 m.ID,
		BattleID:           m.BattleID,
		RoundNumber:        m.RoundNumber,
		Status:             battletypes.RoundStatus(m.Status),
		SubmissionDeadline: m.SubmissionDeadline,
		VotingDeadline:     m.VotingDeadline,
	}
	if m.ForfeitedBy != nil {
		id := battletypes.UserID(*m.ForfeitedBy)
		r.ForfeitedBy = &id
	}
	return r
}

func roundModel(r *battletypes.Round) *Round {
	m := &Round{
		ID:                 r.ID,
		BattleID:           r.BattleID,
		RoundNumber:        r.RoundNumber,
		Status:             string(r.Status),
		SubmissionDeadline: r.SubmissionDeadline,
		VotingDeadline:     r.VotingDeadline,
	}
	if r.ForfeitedBy != nil {
		s := string(*r.ForfeitedBy)
		m.ForfeitedBy = &s
	}
	return m
}

func (m *Submission) toDomain() *battletypes.Submission {
	return &battletypes.Submission{
		ID:        m.ID,
		RoundID:   m.RoundID,
		BattleID:  m.BattleID,
		UserID:    battletypes.UserID(m.UserID),
		Side:      battletypes.Side(m.Side),
		Bars:      m.Bars,
		LineCount: m.LineCount,
		AudioURL:  m.AudioURL,
		CreatedAt: m.CreatedAt,
	}
}

func submissionModel(s *battletypes.Submission) *Submission {
	return &Submission{
		ID:        s.ID,
		RoundID:   s.RoundID,
		BattleID:  s.BattleID,
		UserID:    string(s.UserID),
		Side:      string(s.Side),
		Bars:      s.Bars,
		LineCount: s.LineCount,
		AudioURL:  s.AudioURL,
		CreatedAt: s.CreatedAt,
	}
}

func (m *Vote) toDomain() *battletypes.Vote {
	return &battletypes.Vote{
		ID:         m.ID,
		RoundID:    m.RoundID,
		BattleID:   m.BattleID,
		VoterID:    battletypes.UserID(m.VoterID),
		VoterClass: battletypes.VoterClass(m.VoterClass),
		VoteFor:    battletypes.Side(m.VoteFor),
		SubScores:  m.SubScores,
		CreatedAt:  m.CreatedAt,
	}
}

func voteModel(v *battletypes.Vote) *Vote {
	return &Vote{
		ID:         v.ID,
		RoundID:    v.RoundID,
		BattleID:   v.BattleID,
		VoterID:    string(v.VoterID),
		VoterClass: string(v.VoterClass),
		VoteFor:    string(v.VoteFor),
		SubScores:  v.SubScores,
		CreatedAt:  v.CreatedAt,
	}
}

func (m *Reaction) toDomain() *battletypes.Reaction {
	return &battletypes.Reaction{
		ID:         m.ID,
		BattleID:   m.BattleID,
		UserID:     battletypes.UserID(m.UserID),
		Kind:       m.Kind,
		TargetType: battletypes.ReactionTarget(m.TargetType),
		TargetID:   m.TargetID,
		CreatedAt:  m.CreatedAt,
	}
}

func reactionModel(r *battletypes.Reaction) *Reaction {
	return &Reaction{
		ID:         r.ID,
		BattleID:   r.BattleID,
		UserID:     string(r.UserID),
		Kind:       r.Kind,
		TargetType: string(r.TargetType),
		TargetID:   r.TargetID,
		CreatedAt:  r.CreatedAt,
	}
}

func (m *Comment) toDomain() *battletypes.Comment {
	return &battletypes.Comment{
		ID:          m.ID,
		BattleID:    m.BattleID,
		UserID:      battletypes.UserID(m.UserID),
		Content:     m.Content,
		RoundNumber: m.RoundNumber,
		DeletedAt:   m.DeletedAt,
		CreatedAt:   m.CreatedAt,
	}
}

func commentModel(c *battletypes.Comment) *Comment {
	return &Comment{
		ID:          c.ID,
		BattleID:    c.BattleID,
		UserID:      string(c.UserID),
		Content:     c.Content,
		RoundNumber: c.RoundNumber,
		DeletedAt:   c.DeletedAt,
		CreatedAt:   c.CreatedAt,
	}
}
