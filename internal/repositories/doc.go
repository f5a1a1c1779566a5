// Package repositories implements [models.SessionStore] backends.
//
// Key Implementations:
//   - [MemoryStore] : process-local map with a mutex per session, the reference behavior
//   - [SessionRepository] : SQLite persistence with sealed refresh tokens
//   - [RedisSessionStore] : Redis persistence with sealed refresh tokens and WATCH/MULTI updates
//
// Every backend creates sessions on first [models.SessionStore.Update] and assigns a sequence number
// for stable, human-readable ordering in `sessions list`. SQLite keeps the counter in a
// dedicated sequence table bumped inside the update transaction.
package repositories
