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

// SubmissionDBImpl is the concrete implementation of the SubmissionDB
// interface using bun.
type SubmissionDBImpl struct {
	DB     *bun.DB
	Feed   changefeed.Publisher
	Logger *slog.Logger
}

var _ SubmissionDB = (*SubmissionDBImpl)(nil)

// NewSubmissionDB builds the submissions repository.
func NewSubmissionDB(db *bun.DB, feed changefeed.Publisher, logger *slog.Logger) *SubmissionDBImpl {
	return &SubmissionDBImpl{DB: db, Feed: feed, Logger: logger}
}

// InsertSubmission writes one submission row. The (round_id, user_id) unique
// constraint is the duplicate arbiter: ON CONFLICT DO NOTHING plus an
// affected-row check turns a lost race into the same false return as an
// ordinary duplicate.
func (db *SubmissionDBImpl) InsertSubmission(ctx context.Context, sub *battletypes.Submission) (bool, error) {
	model := submissionModel(sub)

	res, err := db.DB.NewInsert().
		Model(model).
		On("CONFLICT (round_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read submission insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	publishChange(ctx, db.Feed, db.Logger, battleevents.TableSubmissions, battleevents.OpInsert, sub.BattleID, sub, nil)
	return true, nil
}

// ListForRound returns a round's submissions in insertion order.
func (db *SubmissionDBImpl) ListForRound(ctx context.Context, roundID battletypes.RoundID) ([]battletypes.Submission, error) {
	var models []Submission
	err := db.DB.NewSelect().
		Model(&models).
		Where("round_id = ?", roundID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	subs := make([]battletypes.Submission, 0, len(models))
	for i := range models {
		subs = append(subs, *models[i].toDomain())
	}
	return subs, nil
}

// CountForRound counts the submissions recorded for a round.
func (db *SubmissionDBImpl) CountForRound(ctx context.Context, roundID battletypes.RoundID) (int, error) {
	count, err := db.DB.NewSelect().
		Model((*Submission)(nil)).
		Where("round_id = ?", roundID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}
