// Package executor runs mapped statements for a session and owns the session's local cache.
//
// # Strategies
//
// Three strategies share the query path implemented by Base and differ only in how they
// obtain and run statements:
//
//   - Simple prepares a fresh statement for every call
//   - Reuse keeps prepared statements keyed by SQL until the next flush
//   - Batch queues consecutive updates of the same statement and runs them on FlushStatements
//
// New selects a strategy by Kind:
//
//	exec, err := executor.New(executor.KindReuse, tx, executor.NewBunResultMapper(db),
//		executor.WithLogger(logger),
//		executor.WithLocalCacheScope(mapping.ScopeStatement),
//	)
//
// # Local Cache
//
// Every query is keyed by a cache.Key built from the statement id, the row bounds, the SQL
// text, the bound parameter values and the optional environment id. Results are stored in a
// perpetual cache that lives as long as the executor and is cleared by any update, commit,
// rollback, or a statement marked FlushCacheRequired. With ScopeStatement the cache is also
// cleared once the outermost query returns.
//
// A placeholder is stored under the key while the query runs, so a nested query for the same
// key fails with ErrCircularQuery instead of recursing. DeferLoad registers assignments that
// wait for such in-flight results.
//
// # Second Level Cache
//
// Caching wraps any executor and consults the statement's namespace cache through a
// txcache.Manager. Results become visible to other sessions only on commit, and namespace
// caches flagged by a FlushCacheRequired statement are cleared at the same point.
package executor
