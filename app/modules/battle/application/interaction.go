package battleservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// ToggleReaction flips a reaction on or off. A repeated identical reaction
// removes the first one. Returns true when the reaction is now present.
func (s *BattleService) ToggleReaction(ctx context.Context, input ReactionInput) (bool, error) {
	if input.Kind == "" {
		return false, fmt.Errorf("missing reaction kind")
	}
	switch input.TargetType {
	case battletypes.TargetBattle, battletypes.TargetRound, battletypes.TargetSubmission:
	default:
		return false, fmt.Errorf("invalid reaction target: %q", input.TargetType)
	}

	reaction := &battletypes.Reaction{
		ID:         uuid.New(),
		BattleID:   input.BattleID,
		UserID:     input.UserID,
		Kind:       input.Kind,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		CreatedAt:  s.clock.NowUTC(),
	}
	return s.InteractionDB.ToggleReaction(ctx, reaction)
}

// PostComment appends one comment to the battle's thread.
func (s *BattleService) PostComment(ctx context.Context, input CommentInput) (*battletypes.Comment, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("empty comment")
	}

	comment := &battletypes.Comment{
		ID:          uuid.New(),
		BattleID:    input.BattleID,
		UserID:      input.UserID,
		Content:     input.Content,
		RoundNumber: input.RoundNumber,
		CreatedAt:   s.clock.NowUTC(),
	}
	if err := s.InteractionDB.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment soft-deletes the author's own comment.
func (s *BattleService) DeleteComment(ctx context.Context, commentID uuid.UUID, userID battletypes.UserID) error {
	deleted, err := s.InteractionDB.SoftDeleteComment(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("comment %s not found or not owned by caller", commentID)
	}
	return nil
}
