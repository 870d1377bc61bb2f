// Package polycache implements a backend-agnostic cache facade: one typed
// command set (add/get/set/multi/delete/exists/increment/expire/clear/raw)
// over interchangeable byte stores, with pluggable serialization, pre/post
// hooks, and per-call timeout enforcement.
//
// Components:
//   - backend.Store: byte store with TTL (memory, Redis, Memcached, SQLite,
//     BigCache, Ristretto, or a layered near/far pair).
//   - serializer.Serializer[V]: (de)serializes V <-> []byte (JSON by default;
//     msgpack, CBOR, protobuf, raw bytes/strings available).
//   - Hook: observes every command before and after the backend call.
//
// Keys:
//
//	<ns>:<key>  - namespace-prefixed, ":" and "%" escaped in the user key
//	              (with or without a namespace)
//
// Stampede protection:
//
//	v, err := polycache.GetOrComputeStampede(ctx, c, k, lease, compute)
//
// acquires a token-leased distributed lock so only one process recomputes an
// expired entry; in-process duplicates are collapsed with singleflight.
package polycache
