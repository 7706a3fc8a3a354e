// Package migrations holds the SQL schema of the gpioled store. Importing it
// registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gpioled/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
