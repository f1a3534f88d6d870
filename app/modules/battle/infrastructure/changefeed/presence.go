package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

// PresenceChannel is the transient who-is-watching signal for a battle.
// Sessions learn about membership changes through presence records on the
// change feed rather than through a callback registry.
type PresenceChannel interface {
	// Join announces userID as watching battleID. The returned leave func is
	// idempotent.
	Join(ctx context.Context, battleID battletypes.BattleID, userID battletypes.UserID) (func(), error)
	// Count returns the number of identities currently watching battleID.
	Count(battleID battletypes.BattleID) int
}

// BusPresence tracks membership in-process and broadcasts every change on the
// change feed's presence table, so all sessions attached to the same bus see
// the same counts.
type BusPresence struct {
	feed   Publisher
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[battletypes.BattleID]map[battletypes.UserID]int
}

// NewBusPresence builds a presence channel publishing through feed.
func NewBusPresence(feed Publisher, logger *slog.Logger) *BusPresence {
	return &BusPresence{
		feed:     feed,
		logger:   logger,
		watchers: make(map[battletypes.BattleID]map[battletypes.UserID]int),
	}
}

var _ PresenceChannel = (*BusPresence)(nil)

func (p *BusPresence) Join(ctx context.Context, battleID battletypes.BattleID, userID battletypes.UserID) (func(), error) {
	p.mu.Lock()
	if p.watchers[battleID] == nil {
		p.watchers[battleID] = make(map[battletypes.UserID]int)
	}
	p.watchers[battleID][userID]++
	count := len(p.watchers[battleID])
	p.mu.Unlock()

	if err := p.publish(ctx, battleID, userID, true, count); err != nil {
		return nil, err
	}

	var once sync.Once
	leave := func() {
		once.Do(func() {
			p.mu.Lock()
			if users := p.watchers[battleID]; users != nil {
				users[userID]--
				if users[userID] <= 0 {
					delete(users, userID)
				}
				if len(users) == 0 {
					delete(p.watchers, battleID)
				}
			}
			count := len(p.watchers[battleID])
			p.mu.Unlock()

			// Teardown paths call leave with a possibly-cancelled context.
			if err := p.publish(context.Background(), battleID, userID, false, count); err != nil {
				p.logger.Error("Failed to publish presence leave",
					slog.String("battle_id", battleID.String()),
					slog.Any("error", err),
				)
			}
		})
	}
	return leave, nil
}

func (p *BusPresence) Count(battleID battletypes.BattleID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers[battleID])
}

func (p *BusPresence) publish(ctx context.Context, battleID battletypes.BattleID, userID battletypes.UserID, joined bool, count int) error {
	payload := battleevents.PresencePayload{
		BattleID: battleID,
		UserID:   userID,
		Joined:   joined,
		Count:    count,
	}
	row, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal presence payload: %w", err)
	}

	op := battleevents.OpInsert
	if !joined {
		op = battleevents.OpDelete
	}
	return p.feed.PublishChange(ctx, battleevents.ChangeRecord{
		Table:    battleevents.TablePresence,
		Op:       op,
		BattleID: battleID,
		Row:      row,
	})
}
