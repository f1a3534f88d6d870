package battledb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
)

// InteractionDBImpl covers the reactions and comments tables.
type InteractionDBImpl struct {
	DB     *bun.DB
	Feed   changefeed.Publisher
	Logger *slog.Logger
}

var _ InteractionDB = (*InteractionDBImpl)(nil)

// NewInteractionDB builds the reactions/comments repository.
func NewInteractionDB(db *bun.DB, feed changefeed.Publisher, logger *slog.Logger) *InteractionDBImpl {
	return &InteractionDBImpl{DB: db, Feed: feed, Logger: logger}
}

// ToggleReaction inserts the reaction; if an identical one already exists
// the unique constraint rejects the insert and the existing row is deleted
// instead. Returns true when the reaction is present after the call.
func (db *InteractionDBImpl) ToggleReaction(ctx context.Context, reaction *battletypes.Reaction) (bool, error) {
	model := reactionModel(reaction)

	res, err := db.DB.NewInsert().
		Model(model).
		On("CONFLICT (battle_id, user_id, kind, target_type, target_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert reaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reaction insert result: %w", err)
	}

	if affected > 0 {
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableReactions, battleevents.OpInsert, reaction.BattleID, reaction, nil)
		return true, nil
	}

	// Identical reaction already recorded: toggle it off.
	q := db.DB.NewDelete().
		Model((*Reaction)(nil)).
		Where("battle_id = ?", reaction.BattleID).
		Where("user_id = ?", string(reaction.UserID)).
		Where("kind = ?", reaction.Kind).
		Where("target_type = ?", string(reaction.TargetType))
	if reaction.TargetID != nil {
		q = q.Where("target_id = ?", *reaction.TargetID)
	} else {
		q = q.Where("target_id IS NULL")
	}
	if _, err := q.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to remove reaction: %w", err)
	}

	publishChange(ctx, db.Feed, db.Logger, battleevents.TableReactions, battleevents.OpDelete, reaction.BattleID, reaction, nil)
	return false, nil
}

// InsertComment appends one comment.
func (db *InteractionDBImpl) InsertComment(ctx context.Context, comment *battletypes.Comment) error {
	model := commentModel(comment)
	if _, err := db.DB.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}

	publishChange(ctx, db.Feed, db.Logger, battleevents.TableComments, battleevents.OpInsert, comment.BattleID, comment, nil)
	return nil
}

// SoftDeleteComment tombstones an author's own comment. Returns false when
// no live comment matched.
func (db *InteractionDBImpl) SoftDeleteComment(ctx context.Context, commentID uuid.UUID, userID battletypes.UserID) (bool, error) {
	res, err := db.DB.NewUpdate().
		Model((*Comment)(nil)).
		Set("deleted_at = current_timestamp").
		Where("id = ?", commentID).
		Where("user_id = ?", string(userID)).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read comment delete result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	model := new(Comment)
	if err := db.DB.NewSelect().Model(model).Where("id = ?", commentID).Scan(ctx); err == nil {
		comment := model.toDomain()
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableComments, battleevents.OpUpdate, comment.BattleID, comment, nil)
	}
	return true, nil
}

// ListComments returns a battle's live comments oldest first.
func (db *InteractionDBImpl) ListComments(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Comment, error) {
	var models []Comment
	err := db.DB.NewSelect().
		Model(&models).
		Where("battle_id = ?", battleID).
		Where("deleted_at IS NULL").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	comments := make([]battletypes.Comment, 0, len(models))
	for i := range models {
		comments = append(comments, *models[i].toDomain())
	}
	return comments, nil
}
