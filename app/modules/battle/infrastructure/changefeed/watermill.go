package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/cypher-arena/battle-engine/app/eventbus"
	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
)

// allTables is the subscription set used when a filter names no tables.
var allTables = []string{
	battleevents.TableBattles,
	battleevents.TableRounds,
	battleevents.TableSubmissions,
	battleevents.TableVotes,
	battleevents.TableReactions,
	battleevents.TableComments,
	battleevents.TablePresence,
}

// WatermillFeed implements Publisher and Feed over an EventBus. One topic per
// (battle, table) pair keeps a session's traffic scoped to its own battle.
type WatermillFeed struct {
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewWatermillFeed wraps an event bus as a change feed.
func NewWatermillFeed(bus eventbus.EventBus, logger *slog.Logger) *WatermillFeed {
	return &WatermillFeed{bus: bus, logger: logger}
}

var (
	_ Publisher = (*WatermillFeed)(nil)
	_ Feed      = (*WatermillFeed)(nil)
)

// PublishChange encodes the record and publishes it on its battle/table topic.
func (f *WatermillFeed) PublishChange(ctx context.Context, rec battleevents.ChangeRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal change record: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("table", rec.Table)
	msg.Metadata.Set("op", string(rec.Op))

	topic := battleevents.ChangeTopic(rec.Table, rec.BattleID)
	if err := f.bus.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish change record: %w", err)
	}

	if rec.Table == battleevents.TableRounds {
		// Round records also go to the literal fan-in topic so the deadline
		// backstop sees every battle on transports without wildcards.
		fanIn := message.NewMessage(watermill.NewUUID(), payload)
		fanIn.Metadata.Set("table", rec.Table)
		fanIn.Metadata.Set("op", string(rec.Op))
		if err := f.bus.Publish(ctx, battleevents.RoundsChanged, fanIn); err != nil {
			return fmt.Errorf("failed to publish round fan-in record: %w", err)
		}
	}
	return nil
}

// Subscribe opens one bus subscription per table in the filter and fans the
// decoded records into a single channel. The output channel closes once ctx
// is cancelled and every upstream subscription has drained.
func (f *WatermillFeed) Subscribe(ctx context.Context, filter Filter) (<-chan battleevents.ChangeRecord, error) {
	tables := filter.Tables
	if len(tables) == 0 {
		tables = allTables
	}

	out := make(chan battleevents.ChangeRecord, 64)
	var wg sync.WaitGroup

	for _, table := range tables {
		topic := battleevents.ChangeTopic(table, filter.BattleID)
		messages, err := f.bus.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		wg.Add(1)
		go func(table string, messages <-chan *message.Message) {
			defer wg.Done()
			for msg := range messages {
				var rec battleevents.ChangeRecord
				if err := json.Unmarshal(msg.Payload, &rec); err != nil {
					f.logger.Error("Dropping undecodable change record",
						slog.String("table", table),
						slog.String("message_id", msg.UUID),
						slog.Any("error", err),
					)
					msg.Ack()
					continue
				}
				msg.Ack()

				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}(table, messages)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}
