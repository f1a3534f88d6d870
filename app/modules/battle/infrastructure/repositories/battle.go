package battledb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
)

// BattleDBImpl is the concrete implementation of the BattleDB interface using bun.
type BattleDBImpl struct {
	DB     *bun.DB
	Feed   changefeed.Publisher
	Logger *slog.Logger
}

var _ BattleDB = (*BattleDBImpl)(nil)

// NewBattleDB builds the battles repository.
func NewBattleDB(db *bun.DB, feed changefeed.Publisher, logger *slog.Logger) *BattleDBImpl {
	return &BattleDBImpl{DB: db, Feed: feed, Logger: logger}
}

// CreateBattle inserts a new battle in PREP/PENDING.
func (db *BattleDBImpl) CreateBattle(ctx context.Context, battle *battletypes.Battle) error {
	model := battleModel(battle)
	if _, err := db.DB.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create battle: %w", err)
	}

	publishChange(ctx, db.Feed, db.Logger, battleevents.TableBattles, battleevents.OpInsert, battle.ID, battle, nil)
	return nil
}

// GetBattle retrieves a single battle row.
func (db *BattleDBImpl) GetBattle(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Battle, error) {
	model := new(Battle)
	err := db.DB.NewSelect().
		Model(model).
		Where("id = ?", battleID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch battle: %w", err)
	}
	return model.toDomain(), nil
}

// GetAggregate loads the battle with its rounds, submissions, and votes.
func (db *BattleDBImpl) GetAggregate(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Aggregate, error) {
	battle, err := db.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}

	var roundModels []Round
	err = db.DB.NewSelect().
		Model(&roundModels).
		Where("battle_id = ?", battleID).
		Order("round_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rounds: %w", err)
	}

	var submissionModels []Submission
	err = db.DB.NewSelect().
		Model(&submissionModels).
		Where("battle_id = ?", battleID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}

	var voteModels []Vote
	err = db.DB.NewSelect().
		Model(&voteModels).
		Where("battle_id = ?", battleID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch votes: %w", err)
	}

	agg := &battletypes.Aggregate{Battle: *battle}
	for i := range roundModels {
		agg.Rounds = append(agg.Rounds, *roundModels[i].toDomain())
	}
	for i := range submissionModels {
		agg.Submissions = append(agg.Submissions, *submissionModels[i].toDomain())
	}
	for i := range voteModels {
		agg.Votes = append(agg.Votes, *voteModels[i].toDomain())
	}
	return agg, nil
}

// AcceptChallenge conditionally flips the battle to ACCEPTED, records the
// opponent, and creates all round rows in the same transaction. The status
// guard means a second accept, or an accept on a live battle, changes
// nothing and returns false.
func (db *BattleDBImpl) AcceptChallenge(ctx context.Context, battleID battletypes.BattleID, opponentID battletypes.UserID, rounds []battletypes.Round) (bool, error) {
	var applied bool

	err := db.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*Battle)(nil)).
			Set("status = ?", string(battletypes.StatusAccepted)).
			Set("opponent_id = ?", string(opponentID)).
			Set("updated_at = current_timestamp").
			Where("id = ?", battleID).
			Where("status = ?", string(battletypes.StatusPending)).
			Where("phase = ?", string(battletypes.PhasePrep)).
			Where("opponent_id IS NULL OR opponent_id = ?", string(opponentID)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to accept battle: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read accept result: %w", err)
		}
		if affected == 0 {
			return nil
		}

		models := make([]Round, 0, len(rounds))
		for i := range rounds {
			models = append(models, *roundModel(&rounds[i]))
		}
		if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create rounds: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	battle, err := db.GetBattle(ctx, battleID)
	if err == nil {
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableBattles, battleevents.OpUpdate, battleID, battle, nil)
	}
	for i := range rounds {
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableRounds, battleevents.OpInsert, battleID, &rounds[i], nil)
	}
	return true, nil
}

// MarkLive moves the battle from PREP to LIVE.
func (db *BattleDBImpl) MarkLive(ctx context.Context, battleID battletypes.BattleID, start time.Time) (bool, error) {
	old, err := db.GetBattle(ctx, battleID)
	if err != nil {
		return false, err
	}

	res, err := db.DB.NewUpdate().
		Model((*Battle)(nil)).
		Set("phase = ?", string(battletypes.PhaseLive)).
		Set("status = ?", string(battletypes.StatusInProgress)).
		Set("actual_start = ?", start).
		Set("updated_at = current_timestamp").
		Where("id = ?", battleID).
		Where("phase = ?", string(battletypes.PhasePrep)).
		Where("status = ?", string(battletypes.StatusAccepted)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to mark battle live: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read go-live result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if battle, err := db.GetBattle(ctx, battleID); err == nil {
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableBattles, battleevents.OpUpdate, battleID, battle, old)
	}
	return true, nil
}

// MarkCompleted closes the battle into FOLLOWUP/COMPLETED and persists the
// winner.
func (db *BattleDBImpl) MarkCompleted(ctx context.Context, battleID battletypes.BattleID, winnerID battletypes.UserID, score float64, end time.Time) (bool, error) {
	old, err := db.GetBattle(ctx, battleID)
	if err != nil {
		return false, err
	}

	res, err := db.DB.NewUpdate().
		Model((*Battle)(nil)).
		Set("phase = ?", string(battletypes.PhaseFollowup)).
		Set("status = ?", string(battletypes.StatusCompleted)).
		Set("winner_id = ?", string(winnerID)).
		Set("winning_score = ?", score).
		Set("actual_end = ?", end).
		Set("updated_at = current_timestamp").
		Where("id = ?", battleID).
		Where("status != ?", string(battletypes.StatusCompleted)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to complete battle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read completion result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if battle, err := db.GetBattle(ctx, battleID); err == nil {
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableBattles, battleevents.OpUpdate, battleID, battle, old)
	}
	return true, nil
}

// SetCurrentRound advances the battle's current round pointer. The guard
// keeps it monotonic.
func (db *BattleDBImpl) SetCurrentRound(ctx context.Context, battleID battletypes.BattleID, roundNumber int) error {
	_, err := db.DB.NewUpdate().
		Model((*Battle)(nil)).
		Set("current_round = ?", roundNumber).
		Set("updated_at = current_timestamp").
		Where("id = ?", battleID).
		Where("current_round < ?", roundNumber).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set current round: %w", err)
	}

	if battle, err := db.GetBattle(ctx, battleID); err == nil {
		publishChange(ctx, db.Feed, db.Logger, battleevents.TableBattles, battleevents.OpUpdate, battleID, battle, nil)
	}
	return nil
}

// UpdateSpectatorCount persists the latest presence count.
func (db *BattleDBImpl) UpdateSpectatorCount(ctx context.Context, battleID battletypes.BattleID, count int) error {
	_, err := db.DB.NewUpdate().
		Model((*Battle)(nil)).
		Set("spectator_count = ?", count).
		Where("id = ?", battleID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update spectator count: %w", err)
	}
	return nil
}
