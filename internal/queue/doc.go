// Package queue persists reel jobs in SQLite and exposes the transition
// primitives that drive them through the generation pipeline.
//
// A job moves along the stage axis (queued through succeeded) while the
// status axis tracks worker execution (pending, running, and the terminal
// states). Every lifecycle transition is a compare-and-swap update keyed on
// (stage, status) with the affected row count checked, so a stale worker can
// never advance or fail a job it no longer owns. Workers heartbeat while
// running; stale running rows are rolled back to pending for redelivery.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for job semantics; when
// you add new stages or columns, update schema.sql and bump schemaVersion.
package queue
