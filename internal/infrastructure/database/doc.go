// Package database provides the SQLite store behind lumen's learned
// brightness preferences.
//
// Open configures WAL mode, a busy timeout and a single connection, which is
// what a local embedded database with one writer wants. Migrate applies the
// SQL files registered in MigrationsFS (see the migrations package) in
// version order, each in its own transaction, and records them in
// schema_migrations.
//
// Migration files are named YYYYMMDD_HHMMSS_name.up.sql with an optional
// matching .down.sql.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
