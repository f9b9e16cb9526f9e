// Package assets embeds the SQL migrations shipped with the gateway.
package assets

import "embed"

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

// MigrationsDir is the path of the migrations inside EmbedMigrations.
const MigrationsDir = "migrations"
