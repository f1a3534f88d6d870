package battleservice

import (
	"context"
	"io"
	"log/slog"
)

// XP amounts lifted from the platform reward schedule.
const (
	XPBattleSubmission = 25
	XPBattleVote       = 10
	XPBattleWin        = 150
	XPBattleLoss       = 50
)

// XPAwarder is the external reward collaborator. Awards are best-effort:
// callers log failures and carry on.
type XPAwarder interface {
	AwardXP(ctx context.Context, userID string, amount int, reason string) error
}

// AudioStore is the external audio storage collaborator.
type AudioStore interface {
	Upload(ctx context.Context, fileName string, data io.Reader) (string, error)
}

// LogXPAwarder records awards in the log only. Stands in for the platform
// reward service in tests and single-process deployments.
type LogXPAwarder struct {
	Logger *slog.Logger
}

func (a *LogXPAwarder) AwardXP(ctx context.Context, userID string, amount int, reason string) error {
	a.Logger.InfoContext(ctx, "XP awarded",
		slog.String("user_id", userID),
		slog.Int("amount", amount),
		slog.String("reason", reason),
	)
	return nil
}
