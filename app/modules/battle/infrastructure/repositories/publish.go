package battledb

import (
	"context"
	"encoding/json"
	"log/slog"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
)

// publishChange emits one change-feed record for a committed write. Feed
// delivery is best-effort: a session that misses a record resynchronizes by
// reloading the aggregate, so a publish failure is logged, not returned.
func publishChange(ctx context.Context, feed changefeed.Publisher, logger *slog.Logger, table string, op battleevents.Op, battleID battletypes.BattleID, row any, oldRow any) {
	if feed == nil {
		return
	}

	encoded, err := json.Marshal(row)
	if err != nil {
		logger.Error("Failed to encode change record row",
			slog.String("table", table),
			slog.Any("error", err),
		)
		return
	}

	rec := battleevents.ChangeRecord{
		Table:    table,
		Op:       op,
		BattleID: battleID,
		Row:      encoded,
	}
	if oldRow != nil {
		if encodedOld, err := json.Marshal(oldRow); err == nil {
			rec.OldRow = encodedOld
		}
	}

	if err := feed.PublishChange(ctx, rec); err != nil {
		logger.Error("Failed to publish change record",
			slog.String("table", table),
			slog.String("battle_id", battleID.String()),
			slog.Any("error", err),
		)
	}
}
