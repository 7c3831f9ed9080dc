// Package sqlite provides a SQLite-backed implementation of driven.RunStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. A single database holds every run:
//
//   - runs: one row per checkpoint, the full checkpoint kept as JSON
//   - results: terminal fetch results spooled per run and item key
//   - run_locks: advisory locks so two processes never resume the same run
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// The database is stored at <checkpoint dir>/checkpoints.db.
//
// # Thread Safety
//
// All operations are thread-safe. Checkpoint saves run inside a transaction and
// the database runs in WAL mode.
package sqlite
