// Package database provides SQLite access for the gateway's audit storage.
//
// This package manages:
//   - Opening the database with sensible pragmas (WAL, busy timeout, FKs)
//   - A single-writer connection pool suited to SQLite
//   - Embedded, forward-only schema migrations
//   - Health checks for the API health endpoint
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// The pool is capped at one open connection. SQLite supports one writer at
// a time; a larger pool just moves the queueing into the driver.
package database
