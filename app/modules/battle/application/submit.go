package battleservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

const eventSubmissionCreated = "SUBMISSION_CREATED"

// SubmitBars validates and records one submission for the battle's current
// round. When the second participant lands, the round advances to VOTING
// with a voting deadline one time-limit out.
func (s *BattleService) SubmitBars(ctx context.Context, input SubmitInput) (*battletypes.Submission, error) {
	agg, err := s.BattleDB.GetAggregate(ctx, input.BattleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load battle: %w", err)
	}

	side := agg.Battle.SideOf(input.UserID)
	if side == "" {
		return nil, ErrNotParticipant
	}

	round := agg.CurrentRound()
	if round == nil || round.Status != battletypes.RoundActive {
		return nil, ErrNoActiveRound
	}

	for _, existing := range agg.SubmissionsFor(round.ID) {
		if existing.UserID == input.UserID {
			return nil, ErrDuplicateSubmission
		}
	}

	bars := make([]string, 0, len(input.Bars))
	for _, line := range input.Bars {
		if strings.TrimSpace(line) != "" {
			bars = append(bars, line)
		}
	}
	if len(bars) != agg.Battle.BarsPerRound {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLineCountMismatch, len(bars), agg.Battle.BarsPerRound)
	}

	var audioURL string
	if input.Audio != nil {
		if s.audio == nil {
			return nil, fmt.Errorf("audio submitted but no audio store configured")
		}
		audioURL, err = s.audio.Upload(ctx, input.AudioFileName, input.Audio)
		if err != nil {
			return nil, fmt.Errorf("failed to upload audio: %w", err)
		}
	}

	sub := &battletypes.Submission{
		ID:        uuid.New(),
		RoundID:   round.ID,
		BattleID:  input.BattleID,
		UserID:    input.UserID,
		Side:      side,
		Bars:      bars,
		LineCount: len(bars),
		AudioURL:  audioURL,
		CreatedAt: s.clock.NowUTC(),
	}

	inserted, err := s.SubmissionDB.InsertSubmission(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	if !inserted {
		// The unique constraint caught a race our read missed.
		return nil, ErrDuplicateSubmission
	}

	s.awardXP(ctx, input.UserID, XPBattleSubmission, "battle_submission")
	s.logEvent(ctx, input.BattleID, eventSubmissionCreated, map[string]any{
		"round_number": round.RoundNumber,
		"side":         string(side),
	}, &input.UserID)

	count, err := s.SubmissionDB.CountForRound(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	if count >= 2 {
		votingDeadline := s.clock.NowUTC().Add(agg.Battle.TimeLimit)
		if _, err := s.RoundDB.MarkVoting(ctx, round.ID, votingDeadline); err != nil {
			return nil, fmt.Errorf("failed to open voting: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Submission recorded",
		"battle_id", input.BattleID,
		"round_number", round.RoundNumber,
		"side", string(side),
	)
	return sub, nil
}
