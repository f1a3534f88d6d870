package battlemigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the battle module's schema migrations.
var Migrations = migrate.NewMigrations()
