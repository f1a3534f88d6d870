// Package battlesession is the live view over one battle: it loads the
// aggregate, subscribes to the change feed, announces presence, and runs the
// round scheduler. Every external signal is serialized onto one event loop
// goroutine, so listeners and session state never race.
package battlesession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	battleevents "github.com/cypher-arena/battle-engine/app/modules/battle/domain/events"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
	battledb "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/repositories"
	battleutil "github.com/cypher-arena/battle-engine/app/modules/battle/utils"
)

// Role is the caller's relationship to the battle.
type Role string

const (
	RoleChallenger Role = "challenger"
	RoleOpponent   Role = "opponent"
	RoleSpectator  Role = "spectator"
)

// Listener receives session events on the session's event loop goroutine.
// Listeners must not block.
type Listener func(Event)

// Config wires a session's collaborators.
type Config struct {
	BattleID battletypes.BattleID
	UserID   battletypes.UserID

	BattleDB battledb.BattleDB
	Feed     changefeed.Feed
	Presence changefeed.PresenceChannel
	Resolver Resolver
	Clock    battleutil.Clock
	Logger   *slog.Logger
}

// Session is one caller's live attachment to a battle.
type Session struct {
	cfg       Config
	clock     battleutil.Clock
	logger    *slog.Logger
	scheduler *RoundScheduler

	role Role

	ticks chan TimerTick

	// mu guards aggregate and listeners. Only the event loop goroutine
	// writes the aggregate after Initialize; Aggregate hands out copies.
	mu        sync.Mutex
	aggregate *battletypes.Aggregate
	listeners map[int]Listener
	nextID    int

	cancel  context.CancelFunc
	done    chan struct{}
	leave   func()
	destroy sync.Once
}

// New builds an unattached session. Call Initialize before use.
func New(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = battleutil.RealClock{}
	}
	return &Session{
		cfg:       cfg,
		clock:     clock,
		logger:    cfg.Logger,
		ticks:     make(chan TimerTick, 8),
		listeners: make(map[int]Listener),
		done:      make(chan struct{}),
	}
}

// Role returns the caller's classification. Valid after Initialize.
func (s *Session) Role() Role { return s.role }

// Aggregate returns a copy of the last state the event loop applied, so
// callers can read it while the loop keeps applying changes.
func (s *Session) Aggregate() *battletypes.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregate.Clone()
}

// Subscribe registers a listener and returns its unsubscribe func.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Initialize loads the battle, classifies the caller, opens the feed
// subscription, joins presence, and starts the scheduler and event loop.
func (s *Session) Initialize(ctx context.Context) error {
	agg, err := s.cfg.BattleDB.GetAggregate(ctx, s.cfg.BattleID)
	if err != nil {
		return fmt.Errorf("failed to load battle %s: %w", s.cfg.BattleID, err)
	}

	switch agg.Battle.SideOf(s.cfg.UserID) {
	case battletypes.SideChallenger:
		s.role = RoleChallenger
	case battletypes.SideOpponent:
		s.role = RoleOpponent
	default:
		s.role = RoleSpectator
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	feedCh, err := s.cfg.Feed.Subscribe(loopCtx, changefeed.Filter{BattleID: s.cfg.BattleID})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	leave, err := s.cfg.Presence.Join(ctx, s.cfg.BattleID, s.cfg.UserID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to join presence: %w", err)
	}

	s.aggregate = agg
	s.cancel = cancel
	s.leave = leave

	s.scheduler = NewRoundScheduler(s.cfg.BattleID, s.cfg.Resolver, s.clock, s.logger, func(t TimerTick) {
		select {
		case s.ticks <- t:
		default:
			// A stalled loop drops ticks rather than blocking the scheduler.
		}
	})
	s.scheduler.SetRound(s.trackableRound(agg))

	go s.scheduler.Run(loopCtx)
	go s.loop(loopCtx, feedCh)

	s.logger.InfoContext(ctx, "Battle session initialized",
		slog.String("battle_id", s.cfg.BattleID.String()),
		slog.String("user_id", string(s.cfg.UserID)),
		slog.String("role", string(s.role)),
	)
	return nil
}

// Destroy tears the session down. Safe to call more than once; events arriving
// after the first call are dropped.
func (s *Session) Destroy() {
	s.destroy.Do(func() {
		if s.cancel == nil {
			// Initialize never completed, so there is no loop to wait for.
			return
		}
		s.cancel()
		s.leave()
		<-s.done
		s.logger.Info("Battle session destroyed",
			slog.String("battle_id", s.cfg.BattleID.String()),
			slog.String("user_id", string(s.cfg.UserID)),
		)
	})
}

// loop is the session's single event loop: feed records and scheduler ticks
// are applied here and nowhere else.
func (s *Session) loop(ctx context.Context, feedCh <-chan battleevents.ChangeRecord) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-feedCh:
			if !ok {
				return
			}
			s.handleRecord(ctx, rec)
		case tick := <-s.ticks:
			t := tick
			s.emit(Event{Type: EventTimerTick, BattleID: s.cfg.BattleID, Tick: &t})
		}
	}
}

func (s *Session) handleRecord(ctx context.Context, rec battleevents.ChangeRecord) {
	switch rec.Table {
	case battleevents.TableBattles:
		battle, err := rec.Battle()
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode battle change", slog.Any("error", err))
			return
		}
		s.mu.Lock()
		oldPhase := s.aggregate.Battle.Phase
		s.aggregate.Battle = *battle
		s.mu.Unlock()
		s.scheduler.SetRound(s.trackableRound(s.aggregate))
		s.emit(Event{Type: EventBattleUpdated, BattleID: rec.BattleID, Battle: battle})
		if battle.Phase != oldPhase {
			s.emit(Event{
				Type:     EventPhaseChanged,
				BattleID: rec.BattleID,
				Phase:    &PhaseChange{Old: oldPhase, New: battle.Phase},
			})
		}

	case battleevents.TableRounds:
		round, err := rec.Round()
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode round change", slog.Any("error", err))
			return
		}
		s.mu.Lock()
		s.applyRound(round)
		s.mu.Unlock()
		s.scheduler.SetRound(s.trackableRound(s.aggregate))
		s.emit(Event{Type: EventRoundUpdated, BattleID: rec.BattleID, Round: round})

	case battleevents.TableSubmissions:
		sub, err := rec.Submission()
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode submission change", slog.Any("error", err))
			return
		}
		// A newly visible submission can flip the round to VOTING and change
		// what each side may see, so reload the whole aggregate instead of
		// merging one row.
		agg, err := s.cfg.BattleDB.GetAggregate(ctx, s.cfg.BattleID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to reload battle after submission", slog.Any("error", err))
			return
		}
		s.mu.Lock()
		s.aggregate = agg
		s.mu.Unlock()
		s.scheduler.SetRound(s.trackableRound(agg))
		s.emit(Event{Type: EventSubmissionUpdated, BattleID: rec.BattleID, Submission: sub, Aggregate: agg})

	case battleevents.TableVotes:
		vote, err := rec.Vote()
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode vote change", slog.Any("error", err))
			return
		}
		s.mu.Lock()
		s.aggregate.Votes = append(s.aggregate.Votes, *vote)
		s.mu.Unlock()
		s.emit(Event{Type: EventVoteReceived, BattleID: rec.BattleID, Vote: vote})

	case battleevents.TableReactions:
		reaction, err := rec.Reaction()
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode reaction change", slog.Any("error", err))
			return
		}
		s.emit(Event{Type: EventReactionReceived, BattleID: rec.BattleID, Reaction: reaction})

	case battleevents.TableComments:
		comment, err := rec.Comment()
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode comment change", slog.Any("error", err))
			return
		}
		s.emit(Event{Type: EventCommentReceived, BattleID: rec.BattleID, Comment: comment})

	case battleevents.TablePresence:
		var payload battleevents.PresencePayload
		if err := json.Unmarshal(rec.Row, &payload); err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode presence change", slog.Any("error", err))
			return
		}
		s.mu.Lock()
		s.aggregate.Battle.SpectatorCount = payload.Count
		s.mu.Unlock()
		// The challenger's session is the designated writer so concurrent
		// sessions don't fight over the persisted count. The write is a plain
		// SET, so a duplicate is harmless anyway.
		if s.role == RoleChallenger {
			if err := s.cfg.BattleDB.UpdateSpectatorCount(ctx, s.cfg.BattleID, payload.Count); err != nil {
				s.logger.ErrorContext(ctx, "Failed to persist spectator count", slog.Any("error", err))
			}
		}
		s.emit(Event{Type: EventPresenceChanged, BattleID: rec.BattleID, Presence: &payload})
	}
}

// applyRound merges one round row into the aggregate.
func (s *Session) applyRound(round *battletypes.Round) {
	for i := range s.aggregate.Rounds {
		if s.aggregate.Rounds[i].ID == round.ID {
			s.aggregate.Rounds[i] = *round
			return
		}
	}
	s.aggregate.Rounds = append(s.aggregate.Rounds, *round)
}

// trackableRound picks the round the scheduler should watch: the battle's
// current round while it is counting down, nil otherwise.
func (s *Session) trackableRound(agg *battletypes.Aggregate) *battletypes.Round {
	round := agg.CurrentRound()
	if round == nil || !round.IsOpen() {
		return nil
	}
	return round
}

func (s *Session) emit(event Event) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
}
