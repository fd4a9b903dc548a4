// Package store provides SQLite-backed durable storage for ingested records
// and the offset ledger.
//
// The store holds:
//   - Runs: one row per ingest invocation, keyed by a UUIDv7 run id
//   - Ledger entries: consumed byte offset and completion state per data file
//   - Record tables: one table per record kind, columns in catalog order,
//     with batch_id as the last column for task kinds
//
// # Critical Patterns
//
// Exactly-once ingestion
//   - CommitPass writes a pass's records and its ledger entries in one
//     transaction. A crash leaves either both or neither, so a rerun never
//     duplicates rows and never skips bytes.
//
// Flip history
//   - Flips are persisted like any other record. LoadFlips returns every flip
//     of a device so batch ids of later runs keep counting from the same
//     iteration history.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
