// Package battle assembles the battle engine's service, queue, bus handlers,
// and session factory behind one module facade.
package battle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/cypher-arena/battle-engine/app/eventbus"
	battleservice "github.com/cypher-arena/battle-engine/app/modules/battle/application"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
	battlehandlers "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/handlers"
	battlequeue "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/queue"
	battlerouter "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/router"
	battlestorage "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/storage"
	battlesession "github.com/cypher-arena/battle-engine/app/modules/battle/session"
	"github.com/cypher-arena/battle-engine/config"
	"github.com/cypher-arena/battle-engine/db/bundb"
)

// Module is the battle module.
type Module struct {
	EventBus      eventbus.EventBus
	BattleService battleservice.Service
	Feed          *changefeed.WatermillFeed
	Presence      changefeed.PresenceChannel
	Queue         battlequeue.QueueService
	BattleRouter  *battlerouter.BattleRouter

	db         *bundb.DBService
	logger     *slog.Logger
	config     *config.Config
	cancelFunc context.CancelFunc
}

// NewBattleModule wires the battle module. The feed must be the one the
// repositories publish through, or sessions go blind.
func NewBattleModule(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *bundb.DBService,
	feed *changefeed.WatermillFeed,
	eventBus eventbus.EventBus,
	router *message.Router,
	registry *prometheus.Registry,
	tracer trace.Tracer,
) (*Module, error) {
	audio, err := battlestorage.NewLocalStore(cfg.Audio.Dir, cfg.Audio.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio store: %w", err)
	}

	// XP awards flow through the queue once it exists; the queue's own worker
	// needs the direct applier, so the awarder is bound after construction.
	applier := &battleservice.LogXPAwarder{Logger: logger}
	awarder := &queuedXPAwarder{fallback: applier}

	service := battleservice.NewBattleService(
		db.BattleDB,
		db.RoundDB,
		db.SubmissionDB,
		db.VoteDB,
		db.InteractionDB,
		db.EventLogDB,
		eventBus,
		awarder,
		audio,
		nil,
		logger,
	)

	queue, err := battlequeue.NewService(ctx, db.GetDB(), logger, cfg.Postgres.DSN, battlequeue.NewPrometheusMetrics(registry), service, applier)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize battle queue: %w", err)
	}
	awarder.bind(queue)

	handlers := battlehandlers.NewBattleHandlers(queue, db.RoundDB, db.EventLogDB, logger, tracer)

	battleRouter := battlerouter.NewBattleRouter(logger, router, eventBus, tracer, registry)
	if err := battleRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure battle router: %w", err)
	}

	return &Module{
		EventBus:      eventBus,
		BattleService: service,
		Feed:          feed,
		Presence:      changefeed.NewBusPresence(feed, logger),
		Queue:         queue,
		BattleRouter:  battleRouter,
		db:            db,
		logger:        logger,
		config:        cfg,
	}, nil
}

// queuedXPAwarder routes XP grants through the job queue so they retry, and
// falls back to the direct applier before the queue is bound.
type queuedXPAwarder struct {
	mu       sync.RWMutex
	queue    battlequeue.QueueService
	fallback battleservice.XPAwarder
}

func (a *queuedXPAwarder) bind(queue battlequeue.QueueService) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = queue
}

func (a *queuedXPAwarder) AwardXP(ctx context.Context, userID string, amount int, reason string) error {
	a.mu.RLock()
	queue := a.queue
	a.mu.RUnlock()
	if queue != nil {
		return queue.AwardXP(ctx, userID, amount, reason)
	}
	return a.fallback.AwardXP(ctx, userID, amount, reason)
}

// OpenSession attaches one caller to a live battle.
func (m *Module) OpenSession(ctx context.Context, battleID battletypes.BattleID, userID battletypes.UserID) (*battlesession.Session, error) {
	session := battlesession.New(battlesession.Config{
		BattleID: battleID,
		UserID:   userID,
		BattleDB: m.db.BattleDB,
		Feed:     m.Feed,
		Presence: m.Presence,
		Resolver: m.BattleService,
		Logger:   m.logger,
	})
	if err := session.Initialize(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// Run starts the queue and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	m.logger.Info("Starting battle module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if err := m.Queue.Start(ctx); err != nil {
		m.logger.Error("Failed to start battle queue", slog.Any("error", err))
	}

	<-ctx.Done()
	m.logger.Info("Battle module goroutine stopped")
}

// Close stops the queue and router.
func (m *Module) Close() error {
	m.logger.Info("Stopping battle module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if err := m.Queue.Stop(context.Background()); err != nil {
		m.logger.Error("Failed to stop battle queue", slog.Any("error", err))
	}

	m.logger.Info("Battle module stopped")
	return nil
}
