package battledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
)

// RoundDBImpl is the concrete implementation of the RoundDB interface using bun.
type RoundDBImpl struct {
	DB     *bun.DB
	Feed   changefeed.Publisher
	Logger *slog.Logger
}

var _ RoundDB = (*RoundDBImpl)(nil)

// NewRoundDB builds the rounds repository.
func NewRoundDB(db *bun.DB, feed changefeed.Publisher, logger *slog.Logger) *RoundDBImpl {
	return &RoundDBImpl{DB: db, Feed: feed, Logger: logger}
}

// GetRound retrieves a specific round by ID.
func (db *RoundDBImpl) GetRound(ctx context.Context, roundID battletypes.RoundID) (*battletypes.Round, error) {
	model := new(Round)
	err := db.DB.NewSelect().
		Model(model).
		Where("id = ?", roundID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch round: %w", err)
	}
	return model.toDomain(), nil
}

// ListRounds returns a battle's rounds ordered by round number.
func (db *RoundDBImpl) ListRounds(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Round, error) {
	var models []Round
	err := db.DB.NewSelect().
		Model(&models).
		Where("battle_id = ?", battleID).
		Order("round_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}

	rounds := make([]battletypes.Round, 0, len(models))
	for i := range models {
		rounds = append(rounds, *models[i].toDomain())
	}
	return rounds, nil
}

// MarkVoting moves an ACTIVE round to VOTING. Returns false when the round
// was not ACTIVE, which covers both a lost race and a stale caller.
func (db *RoundDBImpl) MarkVoting(ctx context.Context, roundID battletypes.RoundID, votingDeadline time.Time) (bool, error) {
	res, err := db.DB.NewUpdate().
		Model((*Round)(nil)).
		Set("status = ?", string(battletypes.RoundVoting)).
		Set("voting_deadline = ?", votingDeadline).
		Where("id = ?", roundID).
		Where("status = ?", string(battletypes.RoundActive)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to open voting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read voting transition result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	db.publishRound(ctx, roundID)
	return true, nil
}

// ResolveTimeout moves an ACTIVE round to its deadline outcome. Duplicate
// scheduler ticks find the round no longer ACTIVE and change nothing.
func (db *RoundDBImpl) ResolveTimeout(ctx context.Context, roundID battletypes.RoundID, outcome battletypes.RoundStatus, forfeitedBy *battletypes.UserID) (bool, error) {
	if outcome != battletypes.RoundCancelled && outcome != battletypes.RoundForfeited {
		return false, fmt.Errorf("invalid timeout outcome: %s", outcome)
	}

	q := db.DB.NewUpdate().
		Model((*Round)(nil)).
		Set("status = ?", string(outcome)).
		Where("id = ?", roundID).
		Where("status = ?", string(battletypes.RoundActive))
	if forfeitedBy != nil {
		q = q.Set("forfeited_by = ?", string(*forfeitedBy))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve round timeout: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read timeout result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	db.publishRound(ctx, roundID)
	return true, nil
}

// MarkResolved closes a VOTING round.
func (db *RoundDBImpl) MarkResolved(ctx context.Context, roundID battletypes.RoundID) (bool, error) {
	res, err := db.DB.NewUpdate().
		Model((*Round)(nil)).
		Set("status = ?", string(battletypes.RoundResolved)).
		Where("id = ?", roundID).
		Where("status = ?", string(battletypes.RoundVoting)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve round: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read resolve result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	db.publishRound(ctx, roundID)
	return true, nil
}

// ActivateRound moves the numbered PENDING round to ACTIVE and stamps its
// submission deadline, returning the updated row. sql.ErrNoRows surfaces
// when the round is missing or already past PENDING.
func (db *RoundDBImpl) ActivateRound(ctx context.Context, battleID battletypes.BattleID, roundNumber int, deadline time.Time) (*battletypes.Round, error) {
	res, err := db.DB.NewUpdate().
		Model((*Round)(nil)).
		Set("status = ?", string(battletypes.RoundActive)).
		Set("submission_deadline = ?", deadline).
		Where("battle_id = ?", battleID).
		Where("round_number = ?", roundNumber).
		Where("status = ?", string(battletypes.RoundPending)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to activate round: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read activation result: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	model := new(Round)
	err = db.DB.NewSelect().
		Model(model).
		Where("battle_id = ?", battleID).
		Where("round_number = ?", roundNumber).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activated round: %w", err)
	}

	round := model.toDomain()
	publishChange(ctx, db.Feed, db.Logger, battleevents.TableRounds, battleevents.OpUpdate, battleID, round, nil)
	return round, nil
}

func (db *RoundDBImpl) publishRound(ctx context.Context, roundID battletypes.RoundID) {
	round, err := db.GetRound(ctx, roundID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			db.Logger.Error("Failed to reload round for change feed",
				slog.String("round_id", roundID.String()),
				slog.Any("error", err),
			)
		}
		return
	}
	publishChange(ctx, db.Feed, db.Logger, battleevents.TableRounds, battleevents.OpUpdate, round.BattleID, round, nil)
}
