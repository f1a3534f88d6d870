package battledb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
)

// VoteDBImpl is the concrete implementation of the VoteDB interface using bun.
type VoteDBImpl struct {
	DB     *bun.DB
	Feed   changefeed.Publisher
	Logger *slog.Logger
}

var _ VoteDB = (*VoteDBImpl)(nil)

// NewVoteDB builds the votes repository.
func NewVoteDB(db *bun.DB, feed changefeed.Publisher, logger *slog.Logger) *VoteDBImpl {
	return &VoteDBImpl{DB: db, Feed: feed, Logger: logger}
}

// InsertVote writes one vote row, guarded by the (round_id, voter_id) unique
// constraint. Returns false for a duplicate, including the loser of a race.
func (db *VoteDBImpl) InsertVote(ctx context.Context, vote *battletypes.Vote) (bool, error) {
	model := voteModel(vote)

	res, err := db.DB.NewInsert().
		Model(model).
		On("CONFLICT (round_id, voter_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read vote insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	publishChange(ctx, db.Feed, db.Logger, battleevents.TableVotes, battleevents.OpInsert, vote.BattleID, vote, nil)
	return true, nil
}

// ListForBattle returns every vote across all of a battle's rounds.
func (db *VoteDBImpl) ListForBattle(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Vote, error) {
	var models []Vote
	err := db.DB.NewSelect().
		Model(&models).
		Where("battle_id = ?", battleID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}

	votes := make([]battletypes.Vote, 0, len(models))
	for i := range models {
		votes = append(votes, *models[i].toDomain())
	}
	return votes, nil
}
