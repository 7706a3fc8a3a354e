// Package database provides the SQLite store behind the gpioled audit log.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Schema changes live in the top-level migrations package as
// YYYYMMDD_HHMMSS_name.up.sql files with an optional .down.sql twin; that
// package registers them through RegisterMigrations when imported. Applied
// versions are tracked in schema_migrations. Migrations are additive: new
// columns must be nullable or carry a default.
package database
