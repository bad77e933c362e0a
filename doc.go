// Package catalogcache implements the client-side query cache and mutation
// coordination used by the catalog admin console. Results of remote reads are
// cached per query key (tag + parameters); after a successful create, update,
// or delete, every affected entry is patched in the same synchronous pass so
// no view serves a stale or deleted record while waiting for a refetch.
//
// Components:
//   - Provider: byte store with TTL (e.g. Ristretto, BigCache, Redis).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - Store: entry index (status, errors, write sequences, subscribers) plus
//     snapshot storage behind a Provider.
//   - View[V]: typed binding of one key tag and a codec to a Store.
//
// Keys:
//
//	q:products:<params> - list entries, one per search/sort combination
//	q:product:<id>      - detail entries
//
// Read-through pattern:
//
//	v, err := view.Fetch(ctx, key, func(ctx context.Context) (V, error) {
//	    return repo.List(ctx, sort) // only called on miss or stale entry
//	})
//
// Patches are applied by the console package after mutations; the store itself
// never talks to the network.
package catalogcache
