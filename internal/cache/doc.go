// Package cache holds the gateway's response cache: a sharded, capacity-bounded
// store whose entries expire after a TTL, plus the request signatures used as
// its keys.
//
// Eviction policy: each shard is an independent least-recently-used list
// (hashicorp/golang-lru/v2 simplelru). A Get that hits refreshes recency; a Put
// into a full shard evicts that shard's least recently used entry. Expired
// entries are removed lazily by Get, or eagerly by Sweep/Run.
package cache
