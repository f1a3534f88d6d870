package battleservice

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

func TestToggleReaction_RoundTrip(t *testing.T) {
	service, deps := newTestService()

	present := true
	deps.interactions.ToggleReactionFunc = func(_ context.Context, reaction *battletypes.Reaction) (bool, error) {
		assert.Equal(t, "fire", reaction.Kind)
		assert.Equal(t, battletypes.TargetBattle, reaction.TargetType)
		assert.Equal(t, deps.now, reaction.CreatedAt)
		present = !present
		return present, nil
	}

	input := ReactionInput{
		BattleID:   uuid.New(),
		UserID:     "spectator-1",
		Kind:       "fire",
		TargetType: battletypes.TargetBattle,
	}

	on, err := service.ToggleReaction(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, on)

	on, err = service.ToggleReaction(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestToggleReaction_RejectsBadInput(t *testing.T) {
	service, deps := newTestService()

	_, err := service.ToggleReaction(context.Background(), ReactionInput{
		BattleID:   uuid.New(),
		UserID:     "spectator-1",
		TargetType: battletypes.TargetBattle,
	})
	assert.Error(t, err)

	_, err = service.ToggleReaction(context.Background(), ReactionInput{
		BattleID:   uuid.New(),
		UserID:     "spectator-1",
		Kind:       "fire",
		TargetType: "profile",
	})
	assert.Error(t, err)
	assert.Empty(t, deps.interactions.trace)
}

func TestPostComment_RejectsBlank(t *testing.T) {
	service, deps := newTestService()

	_, err := service.PostComment(context.Background(), CommentInput{
		BattleID: uuid.New(),
		UserID:   "spectator-1",
		Content:  "   \t",
	})
	assert.Error(t, err)
	assert.Empty(t, deps.interactions.trace)
}

func TestPostComment_Records(t *testing.T) {
	service, deps := newTestService()

	roundNumber := 2
	comment, err := service.PostComment(context.Background(), CommentInput{
		BattleID:    uuid.New(),
		UserID:      "spectator-1",
		Content:     "that second verse",
		RoundNumber: &roundNumber,
	})
	require.NoError(t, err)

	assert.Equal(t, "that second verse", comment.Content)
	require.NotNil(t, comment.RoundNumber)
	assert.Equal(t, 2, *comment.RoundNumber)
	assert.Equal(t, deps.now, comment.CreatedAt)
	assert.Contains(t, deps.interactions.trace, "InsertComment")
}

func TestDeleteComment_OwnershipEnforcedByRepo(t *testing.T) {
	service, deps := newTestService()

	require.NoError(t, service.DeleteComment(context.Background(), uuid.New(), "spectator-1"))

	deps.interactions.SoftDeleteCommentFunc = func(_ context.Context, _ uuid.UUID, _ battletypes.UserID) (bool, error) {
		return false, nil
	}
	err := service.DeleteComment(context.Background(), uuid.New(), "intruder")
	assert.Error(t, err)
}
