/*
Package dsstub implements a local, file-backed emulator of the datastore_v3
service, for development and tests.

We implement:

1. Entities: hierarchical keys plus ordered, possibly multi-valued, typed
properties. Put allocates ids for incomplete keys.

2. Queries: kind or kindless, with ancestor, equality and inequality filters,
multi-property orders, offset and limit. Results are held by a cursor and
fetched with Next.

3. Transactions: at most one at a time, backed by a shallow snapshot of
storage taken at BeginTransaction and restored by Rollback.

4. Composite index declarations and a checker that fails queries needing an
undeclared index, when Options.RequireIndexes is set.

5. Schema introspection and query history.

# Technical Details

**Storage.**
Entities live in memory in a two-level map: (app, kind) to encoded key to
entity. Stored entities are never mutated, only replaced, so copying the two
map levels is a complete snapshot.

**Persistence.**
Every non-transactional write and every Commit rewrites the whole entity file;
every query rewrites the query history file. Both are sequences of msgpack
records stored via package recfile. A file that cannot be decoded fails Open
with CodeInternalError; the engine never attempts partial recovery.

**Ordering.**
Values of different types sort by a fixed type rank (null, int, bool, string
and bytes, double, point, user, reference). Blob and text values are stored
but never indexed: filters skip them and orders drop entities lacking an
indexable value.

**Dispatch.**
MakeSyncCall routes (service, method, request, response) through a static
method table and exports call counts and latencies via PromCollectors.
*/
package dsstub
