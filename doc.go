// Package blink is a Redis-wire-compatible in-memory key-value cache with a
// byte-accounted LRU eviction core, an append-only persistence tier, and a
// consistent-hash sharding front end.
//
// # Architecture
//
// Requests flow: client bytes -> reactor read buffer -> RESP parser ->
// (router mode: hash-ring lookup -> backend worker) -> dispatcher ->
// two-tier store -> RESP encoder -> socket write.
//
//   - pkg/lru: byte-accounted LRU map, the hot tier
//   - pkg/persist: append-only log, trie index, counting Bloom filter,
//     background compactor - the cold tier
//   - pkg/store: wires the LRU in front of the log (spill on eviction,
//     rehydrate on miss)
//   - pkg/resp: RESP protocol codec
//   - pkg/dispatch: command dispatcher (SET, GET, DEL, INFO, CONFIG GET)
//   - pkg/hashring: consistent hash ring used by the router
//   - pkg/config: flag/env configuration for server and router
//   - pkg/client: a minimal RESP client SDK
//   - internal/reactor: single-threaded epoll-driven event loop
//   - internal/worker: one cache worker (reactor + dispatcher + store)
//   - internal/router: fronts N workers via consistent hashing
//
// # Non-goals
//
// Multi-key transactions, pub/sub, replication, scripting, TTL-based
// expiration, data types beyond strings, and authentication. The cache is
// process-local; the router distributes across in-process workers, not a
// remote cluster.
package blink
