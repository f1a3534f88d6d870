package battlemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	battledb "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating battle tables...")

		models := []any{
			(*battledb.Battle)(nil),
			(*battledb.Round)(nil),
			(*battledb.Submission)(nil),
			(*battledb.Vote)(nil),
			(*battledb.Reaction)(nil),
			(*battledb.Comment)(nil),
			(*battledb.EventLogEntry)(nil),
		}
		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// Uniqueness constraints are the concurrency arbiters: duplicate
		// submissions and votes must lose at the database, not in Go.
		indexes := []struct {
			name  string
			model any
			cols  []string
		}{
			{"battle_rounds_battle_round_uq", (*battledb.Round)(nil), []string{"battle_id", "round_number"}},
			{"battle_submissions_round_user_uq", (*battledb.Submission)(nil), []string{"round_id", "user_id"}},
			{"battle_votes_round_voter_uq", (*battledb.Vote)(nil), []string{"round_id", "voter_id"}},
			{"battle_reactions_identity_uq", (*battledb.Reaction)(nil), []string{"battle_id", "user_id", "kind", "target_type", "target_id"}},
		}
		for _, idx := range indexes {
			if _, err := db.NewCreateIndex().
				Model(idx.model).
				Index(idx.name).
				Column(idx.cols...).
				Unique().
				IfNotExists().
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.name, err)
			}
		}

		fmt.Println("Battle tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Rolling back battle tables...")

		models := []any{
			(*battledb.EventLogEntry)(nil),
			(*battledb.Comment)(nil),
			(*battledb.Reaction)(nil),
			(*battledb.Vote)(nil),
			(*battledb.Submission)(nil),
			(*battledb.Round)(nil),
			(*battledb.Battle)(nil),
		}
		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		fmt.Println("Battle tables dropped successfully!")
		return nil
	})
}
