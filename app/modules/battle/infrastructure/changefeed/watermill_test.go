package changefeed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypher-arena/battle-engine/app/eventbus"
	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
)

func testFeed(t *testing.T) *WatermillFeed {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewInMemoryEventBus(logger)
	t.Cleanup(func() { _ = bus.Close() })
	return NewWatermillFeed(bus, logger)
}

func waitRecord(t *testing.T, ch <-chan battleevents.ChangeRecord) battleevents.ChangeRecord {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change record")
		return battleevents.ChangeRecord{}
	}
}

func TestWatermillFeed_RoundTrip(t *testing.T) {
	feed := testFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	battleID := uuid.New()
	ch, err := feed.Subscribe(ctx, Filter{BattleID: battleID})
	require.NoError(t, err)

	comment := battletypes.Comment{
		ID:       uuid.New(),
		BattleID: battleID,
		UserID:   "spectator-1",
		Content:  "bars",
	}
	row, err := json.Marshal(comment)
	require.NoError(t, err)

	require.NoError(t, feed.PublishChange(ctx, battleevents.ChangeRecord{
		Table:    battleevents.TableComments,
		Op:       battleevents.OpInsert,
		BattleID: battleID,
		Row:      row,
	}))

	rec := waitRecord(t, ch)
	assert.Equal(t, battleevents.TableComments, rec.Table)
	assert.Equal(t, battleevents.OpInsert, rec.Op)

	decoded, err := rec.Comment()
	require.NoError(t, err)
	assert.Equal(t, comment.ID, decoded.ID)
	assert.Equal(t, "bars", decoded.Content)
}

func TestWatermillFeed_ScopedToBattle(t *testing.T) {
	feed := testFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := uuid.New()
	other := uuid.New()
	ch, err := feed.Subscribe(ctx, Filter{BattleID: mine})
	require.NoError(t, err)

	publish := func(battleID battletypes.BattleID) {
		row, _ := json.Marshal(battletypes.Comment{ID: uuid.New(), BattleID: battleID, Content: "x"})
		require.NoError(t, feed.PublishChange(ctx, battleevents.ChangeRecord{
			Table:    battleevents.TableComments,
			Op:       battleevents.OpInsert,
			BattleID: battleID,
			Row:      row,
		}))
	}
	publish(other)
	publish(mine)

	rec := waitRecord(t, ch)
	assert.Equal(t, mine, rec.BattleID)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected record for battle %s", extra.BattleID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatermillFeed_RoundRecordsReachFanInTopic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewInMemoryEventBus(logger)
	t.Cleanup(func() { _ = bus.Close() })
	feed := NewWatermillFeed(bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fanIn, err := bus.Subscribe(ctx, battleevents.RoundsChanged)
	require.NoError(t, err)

	first := uuid.New()
	second := uuid.New()
	publishRound := func(battleID battletypes.BattleID) {
		row, err := json.Marshal(battletypes.Round{
			ID:          uuid.New(),
			BattleID:    battleID,
			RoundNumber: 1,
			Status:      battletypes.RoundActive,
		})
		require.NoError(t, err)
		require.NoError(t, feed.PublishChange(ctx, battleevents.ChangeRecord{
			Table:    battleevents.TableRounds,
			Op:       battleevents.OpUpdate,
			BattleID: battleID,
			Row:      row,
		}))
	}
	publishRound(first)
	publishRound(second)

	// One literal topic carries rounds from every battle, no wildcard needed.
	seen := make(map[battletypes.BattleID]bool)
	for i := 0; i < 2; i++ {
		select {
		case msg := <-fanIn:
			var rec battleevents.ChangeRecord
			require.NoError(t, json.Unmarshal(msg.Payload, &rec))
			msg.Ack()
			assert.Equal(t, battleevents.TableRounds, rec.Table)
			seen[rec.BattleID] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fan-in record")
		}
	}
	assert.True(t, seen[first])
	assert.True(t, seen[second])

	commentRow, _ := json.Marshal(battletypes.Comment{ID: uuid.New(), BattleID: first, Content: "x"})
	require.NoError(t, feed.PublishChange(ctx, battleevents.ChangeRecord{
		Table:    battleevents.TableComments,
		Op:       battleevents.OpInsert,
		BattleID: first,
		Row:      commentRow,
	}))
	select {
	case msg := <-fanIn:
		t.Fatalf("unexpected fan-in message %s", msg.UUID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatermillFeed_TableFilter(t *testing.T) {
	feed := testFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	battleID := uuid.New()
	ch, err := feed.Subscribe(ctx, Filter{
		BattleID: battleID,
		Tables:   []string{battleevents.TableVotes},
	})
	require.NoError(t, err)

	commentRow, _ := json.Marshal(battletypes.Comment{ID: uuid.New(), BattleID: battleID, Content: "x"})
	require.NoError(t, feed.PublishChange(ctx, battleevents.ChangeRecord{
		Table:    battleevents.TableComments,
		Op:       battleevents.OpInsert,
		BattleID: battleID,
		Row:      commentRow,
	}))

	voteRow, _ := json.Marshal(battletypes.Vote{ID: uuid.New(), BattleID: battleID})
	require.NoError(t, feed.PublishChange(ctx, battleevents.ChangeRecord{
		Table:    battleevents.TableVotes,
		Op:       battleevents.OpInsert,
		BattleID: battleID,
		Row:      voteRow,
	}))

	rec := waitRecord(t, ch)
	assert.Equal(t, battleevents.TableVotes, rec.Table)
}
