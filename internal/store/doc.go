// Package store provides persistent storage for the chat gateway using SQLite.
//
// # Data Models
//
//   - Conversation: links a service user with a provider; either side may be
//     absent while the conversation is being set up, but never both
//   - Message: one entry in a conversation's append-only log, immutable once
//     created
//
// # Ordering
//
// Messages within a conversation are ordered by creation time ascending,
// ties broken by id ascending. Timestamps are stored as RFC3339Nano so
// sub-second ordering survives a round trip through the database.
//
// # Implementations
//
// SQLiteStore is the production implementation (modernc.org/sqlite, WAL
// mode). MockStore is an in-memory implementation for tests with the same
// observable semantics.
package store
