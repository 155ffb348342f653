// Package session owns the client-side session: the in-memory register that
// answers "who is logged in", its JSON record layout, and the durable
// persisters behind it.
//
// # Record layout
//
// One record under a fixed storage name holding {"user": Session | null}.
// It is written after every Set/Update by a background writer and read once
// at startup by [Store.Hydrate].
//
// # Persisters
//
//   - [FilePersister]: atomic file writes, optionally sealed with [Sealer].
//   - [RedisPersister]: a single Redis key.
//   - [SQLitePersister]: one row of a kv table.
//   - [MemoryPersister]: process memory.
//
// # What this package must NOT do
//
//   - Import clinicAuth, transport, or jwt (no upward imports).
//   - Set HTTP headers or decide when to log out; callers do that.
package session
