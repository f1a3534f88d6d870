// Package changefeed carries row-level mutation events from the persistence
// layer to live battle sessions. The Feed interface keeps the session and
// phase logic independent of the transport; the watermill adapter is the
// production implementation (NATS in a deployment, gochannel in tests).
package changefeed

import (
	"context"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
)

// Filter selects which change records a subscription receives.
// An empty Tables slice means every table for the battle.
type Filter struct {
	BattleID battletypes.BattleID
	Tables   []string
}

// Publisher is the write side of the feed. Repositories publish one record
// per committed write.
type Publisher interface {
	PublishChange(ctx context.Context, rec battleevents.ChangeRecord) error
}

// Feed is the read side. The returned channel closes when ctx is cancelled.
type Feed interface {
	Subscribe(ctx context.Context, filter Filter) (<-chan battleevents.ChangeRecord, error)
}
