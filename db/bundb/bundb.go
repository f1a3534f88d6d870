// Package bundb owns the Postgres connection and hands out the battle
// module's repository implementations.
package bundb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
	battledb "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/repositories"
	"github.com/cypher-arena/battle-engine/config"
)

// DBService bundles the repository set behind one connection pool.
type DBService struct {
	BattleDB      *battledb.BattleDBImpl
	RoundDB       *battledb.RoundDBImpl
	SubmissionDB  *battledb.SubmissionDBImpl
	VoteDB        *battledb.VoteDBImpl
	InteractionDB *battledb.InteractionDBImpl
	EventLogDB    *battledb.EventLogDBImpl

	db *bun.DB
}

// GetDB returns the underlying database connection pool.
func (s *DBService) GetDB() *bun.DB {
	return s.db
}

// Close closes the connection pool.
func (s *DBService) Close() error {
	return s.db.Close()
}

// NewBunDBService connects to Postgres and builds the repositories. Writes go
// through the change feed publisher so sessions see every committed mutation.
func NewBunDBService(ctx context.Context, cfg config.PostgresConfig, feed changefeed.Publisher, logger *slog.Logger) (*DBService, error) {
	sqldb, err := pgConn(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel(
		(*battledb.Battle)(nil),
		(*battledb.Round)(nil),
		(*battledb.Submission)(nil),
		(*battledb.Vote)(nil),
		(*battledb.Reaction)(nil),
		(*battledb.Comment)(nil),
		(*battledb.EventLogEntry)(nil),
	)

	logger.InfoContext(ctx, "Connected to Postgres")

	return &DBService{
		BattleDB:      battledb.NewBattleDB(db, feed, logger),
		RoundDB:       battledb.NewRoundDB(db, feed, logger),
		SubmissionDB:  battledb.NewSubmissionDB(db, feed, logger),
		VoteDB:        battledb.NewVoteDB(db, feed, logger),
		InteractionDB: battledb.NewInteractionDB(db, feed, logger),
		EventLogDB:    battledb.NewEventLogDB(db, logger),
		db:            db,
	}, nil
}

func pgConn(dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqldb, nil
}
