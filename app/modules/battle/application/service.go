package battleservice

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/cypher-arena/battle-engine/app/eventbus"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battledb "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/repositories"
	battleutil "github.com/cypher-arena/battle-engine/app/modules/battle/utils"
)

// BattleService implements Service against the persistence gateway.
type BattleService struct {
	BattleDB      battledb.BattleDB
	RoundDB       battledb.RoundDB
	SubmissionDB  battledb.SubmissionDB
	VoteDB        battledb.VoteDB
	InteractionDB battledb.InteractionDB
	EventLog      battledb.EventLogDB

	eventBus eventbus.EventBus
	xp       XPAwarder
	audio    AudioStore
	clock    battleutil.Clock
	logger   *slog.Logger
}

var _ Service = (*BattleService)(nil)

// NewBattleService wires the battle application service.
func NewBattleService(
	battleDB battledb.BattleDB,
	roundDB battledb.RoundDB,
	submissionDB battledb.SubmissionDB,
	voteDB battledb.VoteDB,
	interactionDB battledb.InteractionDB,
	eventLog battledb.EventLogDB,
	bus eventbus.EventBus,
	xp XPAwarder,
	audio AudioStore,
	clock battleutil.Clock,
	logger *slog.Logger,
) *BattleService {
	if clock == nil {
		clock = battleutil.RealClock{}
	}
	return &BattleService{
		BattleDB:      battleDB,
		RoundDB:       roundDB,
		SubmissionDB:  submissionDB,
		VoteDB:        voteDB,
		InteractionDB: interactionDB,
		EventLog:      eventLog,
		eventBus:      bus,
		xp:            xp,
		audio:         audio,
		clock:         clock,
		logger:        logger,
	}
}

// GetAggregate loads the full battle graph.
func (s *BattleService) GetAggregate(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Aggregate, error) {
	return s.BattleDB.GetAggregate(ctx, battleID)
}

// ListComments returns a battle's live comments.
func (s *BattleService) ListComments(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Comment, error) {
	return s.InteractionDB.ListComments(ctx, battleID)
}

// publishEvent emits a lifecycle event on the bus. Lifecycle topics are
// global, unlike the per-battle change-feed topics.
func (s *BattleService) publishEvent(ctx context.Context, topic string, payload any) {
	if s.eventBus == nil {
		return
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal lifecycle event",
			slog.String("topic", topic),
			slog.Any("error", err),
		)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), encoded)
	if err := s.eventBus.Publish(ctx, topic, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish lifecycle event",
			slog.String("topic", topic),
			slog.Any("error", err),
		)
	}
}

// logEvent appends to the battle audit log; failures are logged, not returned.
func (s *BattleService) logEvent(ctx context.Context, battleID battletypes.BattleID, eventType string, data map[string]any, userID *battletypes.UserID) {
	if s.EventLog == nil {
		return
	}
	if err := s.EventLog.AppendEvent(ctx, battleID, eventType, data, userID); err != nil {
		s.logger.WarnContext(ctx, "Failed to log battle event",
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
	}
}

// awardXP requests a reward; failure never blocks the primary operation.
func (s *BattleService) awardXP(ctx context.Context, userID battletypes.UserID, amount int, reason string) {
	if s.xp == nil {
		return
	}
	if err := s.xp.AwardXP(ctx, string(userID), amount, reason); err != nil {
		s.logger.ErrorContext(ctx, "Failed to award XP",
			slog.String("user_id", string(userID)),
			slog.Int("amount", amount),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
	}
}
