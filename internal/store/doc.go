// Package store provides SQLite-backed durable storage for ingested log
// records with self-enforcing retention.
//
// The schema is one append-only logs table keyed by an autoincrement
// identity, plus a retention trigger evaluated inside every insert
// transaction: whenever the row count would exceed the configured bound,
// the oldest excess rows are deleted as part of the same atomic
// operation. There is no separate cleanup process, so the bound holds
// across crashes and restarts by construction.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers (the external viewer) during writes
//   - wal_autocheckpoint=128: keep the WAL short on an append-heavy load
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// The daemon is the only writer; the backing file is exclusively owned
// for its lifetime.
package store
