// Package migrations embeds the journal's SQL migrations into the binary.
//
// Blank-import it from any binary that calls database.DB.Migrate.
package migrations

import (
	"embed"

	"github.com/ta25stage/stagelink/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
