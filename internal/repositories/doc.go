// Package repositories implements SQLite persistence for users, per-service token sets and transfer records.
//
// Key Implementations:
//   - [UserRepository] : User accounts that token rows hang off
//   - [TokenRepository] : Token store with the validity projection, full store and partial update
//   - [TransferRepository] : Transfer records with full-document upsert
//
// Errors from the database are wrapped with [shared.ErrPersistence]; lookups that
// miss return [shared.ErrNotFound] variants, except where the caller contract asks
// for an empty result instead.
package repositories
