package battledb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// EventLogDBImpl writes the append-only battle_event_log table.
type EventLogDBImpl struct {
	DB     *bun.DB
	Logger *slog.Logger
}

var _ EventLogDB = (*EventLogDBImpl)(nil)

// NewEventLogDB builds the event log repository.
func NewEventLogDB(db *bun.DB, logger *slog.Logger) *EventLogDBImpl {
	return &EventLogDBImpl{DB: db, Logger: logger}
}

// AppendEvent records one lifecycle audit entry.
func (db *EventLogDBImpl) AppendEvent(ctx context.Context, battleID battletypes.BattleID, eventType string, data map[string]any, userID *battletypes.UserID) error {
	entry := &EventLogEntry{
		BattleID:  battleID,
		EventType: eventType,
		EventData: data,
	}
	if userID != nil {
		s := string(*userID)
		entry.UserID = &s
	}

	if _, err := db.DB.NewInsert().Model(entry).Exec(ctx); err != nil {
		db.Logger.Warn("Failed to append battle event log entry",
			slog.String("battle_id", battleID.String()),
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to append event log entry: %w", err)
	}
	return nil
}
