// Package battlerouter registers the battle module's bus handlers on a
// watermill router.
package battlerouter

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/cypher-arena/battle-engine/app/eventbus"
	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battlehandlers "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/handlers"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

type BattleRouter struct {
	logger *slog.Logger
	Router *message.Router
	bus    eventbus.EventBus
	tracer trace.Tracer

	metricsBuilder *metrics.PrometheusMetricsBuilder
}

func NewBattleRouter(
	logger *slog.Logger,
	router *message.Router,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	registry *prometheus.Registry,
) *BattleRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if registry != nil && !inTestEnv {
		b := metrics.NewPrometheusMetricsBuilder(registry, "", "")
		metricsBuilder = &b
	}

	return &BattleRouter{
		logger:         logger,
		Router:         router,
		bus:            bus,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
	}
}

// Configure attaches metrics middleware and registers all handlers.
func (r *BattleRouter) Configure(_ context.Context, h battlehandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.register(battleevents.BattleAccepted, h.HandleBattleAccepted)
	// The change feed mirrors every rounds record onto this literal topic,
	// so the deadline backstop works on both the NATS and in-memory buses.
	r.register(battleevents.RoundsChanged, h.HandleRoundChanged)
	r.register(battleevents.BattleCompleted, h.HandleBattleCompleted)
	r.register(battleevents.RoundTimedOut, h.HandleRoundTimedOut)
	return nil
}

func (r *BattleRouter) register(topic string, handler message.NoPublishHandlerFunc) {
	r.Router.AddNoPublisherHandler(
		"battle."+topic,
		topic,
		r.bus.Subscriber(),
		handler,
	)
}

// Run blocks until ctx is cancelled.
func (r *BattleRouter) Run(ctx context.Context) error {
	return r.Router.Run(ctx)
}

func (r *BattleRouter) Close() error {
	return r.Router.Close()
}
