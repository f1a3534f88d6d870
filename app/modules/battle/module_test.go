package battle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battlequeue "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/queue"
)

type stubQueue struct{}

func (stubQueue) ScheduleDeadline(context.Context, battletypes.BattleID, battletypes.RoundID, string, time.Time) error {
	return nil
}
func (stubQueue) CancelBattleJobs(context.Context, battletypes.BattleID) error { return nil }
func (stubQueue) AwardXP(context.Context, string, int, string) error           { return nil }
func (stubQueue) GetScheduledJobs(context.Context, battletypes.BattleID) ([]battlequeue.JobInfo, error) {
	return nil, nil
}
func (stubQueue) HealthCheck(context.Context) error { return nil }
func (stubQueue) Start(context.Context) error       { return nil }
func (stubQueue) Stop(context.Context) error        { return nil }

func TestModuleRun_ReleasesWaitGroupOnShutdown(t *testing.T) {
	m := &Module{
		Queue:  stubQueue{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go m.Run(ctx, &wg)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never released the wait group after cancellation")
	}
}
