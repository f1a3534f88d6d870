package battleservice

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battleutil "github.com/cypher-arena/battle-engine/app/modules/battle/utils"
)

// ------------------------
// Fake repositories
// ------------------------

type FakeBattleDB struct {
	trace []string

	CreateBattleFunc         func(ctx context.Context, battle *battletypes.Battle) error
	GetBattleFunc            func(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Battle, error)
	GetAggregateFunc         func(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Aggregate, error)
	AcceptChallengeFunc      func(ctx context.Context, battleID battletypes.BattleID, opponentID battletypes.UserID, rounds []battletypes.Round) (bool, error)
	MarkLiveFunc             func(ctx context.Context, battleID battletypes.BattleID, start time.Time) (bool, error)
	MarkCompletedFunc        func(ctx context.Context, battleID battletypes.BattleID, winnerID battletypes.UserID, score float64, end time.Time) (bool, error)
	SetCurrentRoundFunc      func(ctx context.Context, battleID battletypes.BattleID, roundNumber int) error
	UpdateSpectatorCountFunc func(ctx context.Context, battleID battletypes.BattleID, count int) error
}

func (f *FakeBattleDB) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeBattleDB) CreateBattle(ctx context.Context, battle *battletypes.Battle) error {
	f.record("CreateBattle")
	if f.CreateBattleFunc != nil {
		return f.CreateBattleFunc(ctx, battle)
	}
	return nil
}

func (f *FakeBattleDB) GetBattle(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Battle, error) {
	f.record("GetBattle")
	if f.GetBattleFunc != nil {
		return f.GetBattleFunc(ctx, battleID)
	}
	return &battletypes.Battle{ID: battleID}, nil
}

func (f *FakeBattleDB) GetAggregate(ctx context.Context, battleID battletypes.BattleID) (*battletypes.Aggregate, error) {
	f.record("GetAggregate")
	if f.GetAggregateFunc != nil {
		return f.GetAggregateFunc(ctx, battleID)
	}
	return &battletypes.Aggregate{Battle: battletypes.Battle{ID: battleID}}, nil
}

func (f *FakeBattleDB) AcceptChallenge(ctx context.Context, battleID battletypes.BattleID, opponentID battletypes.UserID, rounds []battletypes.Round) (bool, error) {
	f.record("AcceptChallenge")
	if f.AcceptChallengeFunc != nil {
		return f.AcceptChallengeFunc(ctx, battleID, opponentID, rounds)
	}
	return true, nil
}

func (f *FakeBattleDB) MarkLive(ctx context.Context, battleID battletypes.BattleID, start time.Time) (bool, error) {
	f.record("MarkLive")
	if f.MarkLiveFunc != nil {
		return f.MarkLiveFunc(ctx, battleID, start)
	}
	return true, nil
}

func (f *FakeBattleDB) MarkCompleted(ctx context.Context, battleID battletypes.BattleID, winnerID battletypes.UserID, score float64, end time.Time) (bool, error) {
	f.record("MarkCompleted")
	if f.MarkCompletedFunc != nil {
		return f.MarkCompletedFunc(ctx, battleID, winnerID, score, end)
	}
	return true, nil
}

func (f *FakeBattleDB) SetCurrentRound(ctx context.Context, battleID battletypes.BattleID, roundNumber int) error {
	f.record("SetCurrentRound")
	if f.SetCurrentRoundFunc != nil {
		return f.SetCurrentRoundFunc(ctx, battleID, roundNumber)
	}
	return nil
}

func (f *FakeBattleDB) UpdateSpectatorCount(ctx context.Context, battleID battletypes.BattleID, count int) error {
	f.record("UpdateSpectatorCount")
	if f.UpdateSpectatorCountFunc != nil {
		return f.UpdateSpectatorCountFunc(ctx, battleID, count)
	}
	return nil
}

type FakeRoundDB struct {
	trace []string

	GetRoundFunc       func(ctx context.Context, roundID battletypes.RoundID) (*battletypes.Round, error)
	ListRoundsFunc     func(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Round, error)
	MarkVotingFunc     func(ctx context.Context, roundID battletypes.RoundID, votingDeadline time.Time) (bool, error)
	ResolveTimeoutFunc func(ctx context.Context, roundID battletypes.RoundID, outcome battletypes.RoundStatus, forfeitedBy *battletypes.UserID) (bool, error)
	MarkResolvedFunc   func(ctx context.Context, roundID battletypes.RoundID) (bool, error)
	ActivateRoundFunc  func(ctx context.Context, battleID battletypes.BattleID, roundNumber int, deadline time.Time) (*battletypes.Round, error)
}

func (f *FakeRoundDB) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeRoundDB) GetRound(ctx context.Context, roundID battletypes.RoundID) (*battletypes.Round, error) {
	f.record("GetRound")
	if f.GetRoundFunc != nil {
		return f.GetRoundFunc(ctx, roundID)
	}
	return &battletypes.Round{ID: roundID}, nil
}

func (f *FakeRoundDB) ListRounds(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Round, error) {
	f.record("ListRounds")
	if f.ListRoundsFunc != nil {
		return f.ListRoundsFunc(ctx, battleID)
	}
	return nil, nil
}

func (f *FakeRoundDB) MarkVoting(ctx context.Context, roundID battletypes.RoundID, votingDeadline time.Time) (bool, error) {
	f.record("MarkVoting")
	if f.MarkVotingFunc != nil {
		return f.MarkVotingFunc(ctx, roundID, votingDeadline)
	}
	return true, nil
}

func (f *FakeRoundDB) ResolveTimeout(ctx context.Context, roundID battletypes.RoundID, outcome battletypes.RoundStatus, forfeitedBy *battletypes.UserID) (bool, error) {
	f.record("ResolveTimeout")
	if f.ResolveTimeoutFunc != nil {
		return f.ResolveTimeoutFunc(ctx, roundID, outcome, forfeitedBy)
	}
	return true, nil
}

func (f *FakeRoundDB) MarkResolved(ctx context.Context, roundID battletypes.RoundID) (bool, error) {
	f.record("MarkResolved")
	if f.MarkResolvedFunc != nil {
		return f.MarkResolvedFunc(ctx, roundID)
	}
	return true, nil
}

func (f *FakeRoundDB) ActivateRound(ctx context.Context, battleID battletypes.BattleID, roundNumber int, deadline time.Time) (*battletypes.Round, error) {
	f.record("ActivateRound")
	if f.ActivateRoundFunc != nil {
		return f.ActivateRoundFunc(ctx, battleID, roundNumber, deadline)
	}
	return &battletypes.Round{BattleID: battleID, RoundNumber: roundNumber, Status: battletypes.RoundActive}, nil
}

type FakeSubmissionDB struct {
	trace []string

	InsertSubmissionFunc func(ctx context.Context, sub *battletypes.Submission) (bool, error)
	ListForRoundFunc     func(ctx context.Context, roundID battletypes.RoundID) ([]battletypes.Submission, error)
	CountForRoundFunc    func(ctx context.Context, roundID battletypes.RoundID) (int, error)
}

func (f *FakeSubmissionDB) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeSubmissionDB) InsertSubmission(ctx context.Context, sub *battletypes.Submission) (bool, error) {
	f.record("InsertSubmission")
	if f.InsertSubmissionFunc != nil {
		return f.InsertSubmissionFunc(ctx, sub)
	}
	return true, nil
}

func (f *FakeSubmissionDB) ListForRound(ctx context.Context, roundID battletypes.RoundID) ([]battletypes.Submission, error) {
	f.record("ListForRound")
	if f.ListForRoundFunc != nil {
		return f.ListForRoundFunc(ctx, roundID)
	}
	return nil, nil
}

func (f *FakeSubmissionDB) CountForRound(ctx context.Context, roundID battletypes.RoundID) (int, error) {
	f.record("CountForRound")
	if f.CountForRoundFunc != nil {
		return f.CountForRoundFunc(ctx, roundID)
	}
	return 1, nil
}

type FakeVoteDB struct {
	trace []string

	InsertVoteFunc    func(ctx context.Context, vote *battletypes.Vote) (bool, error)
	ListForBattleFunc func(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Vote, error)
}

func (f *FakeVoteDB) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeVoteDB) InsertVote(ctx context.Context, vote *battletypes.Vote) (bool, error) {
	f.record("InsertVote")
	if f.InsertVoteFunc != nil {
		return f.InsertVoteFunc(ctx, vote)
	}
	return true, nil
}

func (f *FakeVoteDB) ListForBattle(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Vote, error) {
	f.record("ListForBattle")
	if f.ListForBattleFunc != nil {
		return f.ListForBattleFunc(ctx, battleID)
	}
	return nil, nil
}

type FakeInteractionDB struct {
	trace []string

	ToggleReactionFunc    func(ctx context.Context, reaction *battletypes.Reaction) (bool, error)
	InsertCommentFunc     func(ctx context.Context, comment *battletypes.Comment) error
	SoftDeleteCommentFunc func(ctx context.Context, commentID uuid.UUID, userID battletypes.UserID) (bool, error)
	ListCommentsFunc      func(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Comment, error)
}

func (f *FakeInteractionDB) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeInteractionDB) ToggleReaction(ctx context.Context, reaction *battletypes.Reaction) (bool, error) {
	f.record("ToggleReaction")
	if f.ToggleReactionFunc != nil {
		return f.ToggleReactionFunc(ctx, reaction)
	}
	return true, nil
}

func (f *FakeInteractionDB) InsertComment(ctx context.Context, comment *battletypes.Comment) error {
	f.record("InsertComment")
	if f.InsertCommentFunc != nil {
		return f.InsertCommentFunc(ctx, comment)
	}
	return nil
}

func (f *FakeInteractionDB) SoftDeleteComment(ctx context.Context, commentID uuid.UUID, userID battletypes.UserID) (bool, error) {
	f.record("SoftDeleteComment")
	if f.SoftDeleteCommentFunc != nil {
		return f.SoftDeleteCommentFunc(ctx, commentID, userID)
	}
	return true, nil
}

func (f *FakeInteractionDB) ListComments(ctx context.Context, battleID battletypes.BattleID) ([]battletypes.Comment, error) {
	f.record("ListComments")
	if f.ListCommentsFunc != nil {
		return f.ListCommentsFunc(ctx, battleID)
	}
	return nil, nil
}

type FakeEventLogDB struct {
	Events []string
}

func (f *FakeEventLogDB) AppendEvent(ctx context.Context, battleID battletypes.BattleID, eventType string, data map[string]any, userID *battletypes.UserID) error {
	f.Events = append(f.Events, eventType)
	return nil
}

type FakeXPAwarder struct {
	Awards []string
	Totals map[string]int
}

func (f *FakeXPAwarder) AwardXP(ctx context.Context, userID string, amount int, reason string) error {
	if f.Totals == nil {
		f.Totals = map[string]int{}
	}
	f.Awards = append(f.Awards, reason)
	f.Totals[userID] += amount
	return nil
}

type FakeAudioStore struct {
	UploadFunc func(ctx context.Context, fileName string, data io.Reader) (string, error)
}

func (f *FakeAudioStore) Upload(ctx context.Context, fileName string, data io.Reader) (string, error) {
	if f.UploadFunc != nil {
		return f.UploadFunc(ctx, fileName, data)
	}
	return "https://cdn.test/" + fileName, nil
}

// ------------------------
// Test service assembly
// ------------------------

type testDeps struct {
	battles      *FakeBattleDB
	rounds       *FakeRoundDB
	submissions  *FakeSubmissionDB
	votes        *FakeVoteDB
	interactions *FakeInteractionDB
	eventLog     *FakeEventLogDB
	xp           *FakeXPAwarder
	audio        *FakeAudioStore
	now          time.Time
}

func newTestService() (*BattleService, *testDeps) {
	deps := &testDeps{
		battles:      &FakeBattleDB{},
		rounds:       &FakeRoundDB{},
		submissions:  &FakeSubmissionDB{},
		votes:        &FakeVoteDB{},
		interactions: &FakeInteractionDB{},
		eventLog:     &FakeEventLogDB{},
		xp:           &FakeXPAwarder{},
		audio:        &FakeAudioStore{},
		now:          time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	clock := &battleutil.FakeClock{
		NowFn:    func() time.Time { return deps.now },
		NowUTCFn: func() time.Time { return deps.now },
	}
	service := NewBattleService(
		deps.battles,
		deps.rounds,
		deps.submissions,
		deps.votes,
		deps.interactions,
		deps.eventLog,
		nil,
		deps.xp,
		deps.audio,
		clock,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return service, deps
}
