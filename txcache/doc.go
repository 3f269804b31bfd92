// Package txcache buffers second level cache writes until the owning session commits.
//
// A TransactionalCache wraps one shared cache. Reads go straight to the shared cache, while
// puts and clears are staged locally: Commit publishes them, Rollback discards them. Keys that
// missed are remembered so that a blocking shared cache has its locks released on either
// outcome. A Manager keeps one TransactionalCache per shared cache for a session.
package txcache
