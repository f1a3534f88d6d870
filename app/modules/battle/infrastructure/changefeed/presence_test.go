package changefeed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
)

type capturingPublisher struct {
	mu      sync.Mutex
	records []battleevents.ChangeRecord
}

func (p *capturingPublisher) PublishChange(_ context.Context, rec battleevents.ChangeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

func (p *capturingPublisher) payloads(t *testing.T) []battleevents.PresencePayload {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]battleevents.PresencePayload, 0, len(p.records))
	for _, rec := range p.records {
		var payload battleevents.PresencePayload
		require.NoError(t, json.Unmarshal(rec.Row, &payload))
		out = append(out, payload)
	}
	return out
}

func testPresence() (*BusPresence, *capturingPublisher) {
	pub := &capturingPublisher{}
	return NewBusPresence(pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func TestBusPresence_CountsDistinctWatchers(t *testing.T) {
	presence, pub := testPresence()
	battleID := uuid.New()
	ctx := context.Background()

	leaveA, err := presence.Join(ctx, battleID, "user-a")
	require.NoError(t, err)
	_, err = presence.Join(ctx, battleID, "user-b")
	require.NoError(t, err)

	assert.Equal(t, 2, presence.Count(battleID))

	leaveA()
	assert.Equal(t, 1, presence.Count(battleID))

	payloads := pub.payloads(t)
	require.Len(t, payloads, 3)
	assert.Equal(t, 1, payloads[0].Count)
	assert.True(t, payloads[0].Joined)
	assert.Equal(t, 2, payloads[1].Count)
	assert.Equal(t, 1, payloads[2].Count)
	assert.False(t, payloads[2].Joined)
}

func TestBusPresence_SameUserTwoSessions(t *testing.T) {
	presence, _ := testPresence()
	battleID := uuid.New()
	ctx := context.Background()

	leave1, err := presence.Join(ctx, battleID, "user-a")
	require.NoError(t, err)
	leave2, err := presence.Join(ctx, battleID, "user-a")
	require.NoError(t, err)

	// One identity on two devices still counts once.
	assert.Equal(t, 1, presence.Count(battleID))

	leave1()
	assert.Equal(t, 1, presence.Count(battleID))
	leave2()
	assert.Equal(t, 0, presence.Count(battleID))
}

func TestBusPresence_LeaveIsIdempotent(t *testing.T) {
	presence, pub := testPresence()
	battleID := uuid.New()

	leave, err := presence.Join(context.Background(), battleID, "user-a")
	require.NoError(t, err)

	leave()
	leave()

	assert.Equal(t, 0, presence.Count(battleID))
	assert.Len(t, pub.payloads(t), 2)
}

func TestBusPresence_BattlesAreIsolated(t *testing.T) {
	presence, _ := testPresence()
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()

	_, err := presence.Join(ctx, a, "user-a")
	require.NoError(t, err)
	_, err = presence.Join(ctx, b, "user-b")
	require.NoError(t, err)

	assert.Equal(t, 1, presence.Count(a))
	assert.Equal(t, 1, presence.Count(b))
}
