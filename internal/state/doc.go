// Package state holds the client-side mirrors of the user's tasks and groups.
//
// # Overview
//
// The backend owns every record. A store keeps the last listing it fetched
// and patches it as mutations succeed, so the dashboard and the CLI can read
// without a round trip. Stores are plain service objects: build one per
// client and pass it to whatever renders it.
//
// # Architecture
//
//	Writers (poller, key handlers):   Readers (UI render loop):
//	┌────────────────────┐            ┌──────────────────┐
//	│ Fetch()            │            │                  │
//	│ Create()/Update()  │            │                  │
//	│ Delete()/Restore() │───────────→│ Snapshot()       │
//	│        ↓           │ (RWMutex)  │ Lookup()         │
//	│ merge response     │            │ render           │
//	└────────────────────┘            └──────────────────┘
//
// Collection[T] carries the generic part: the ordered items, an in-flight
// counter that drives the loading flag, and the most recent classified
// error. TaskStore and GroupStore bind it to their endpoints.
//
// # Update Semantics
//
//	Fetch ok     → items replaced, LastError cleared, failures reset
//	Fetch failed → items kept, LastError set, failures incremented
//	Create ok    → server entity appended (never before the server answers)
//	Update ok    → fields present in the response overlay the local entity
//	Delete ok    → entity removed; Lookup reports it absent
//	any failure  → LastError set and the same *api.Error returned
//
// Mutations on the same id are not serialized. Each response is merged when
// it arrives, so the response that lands last wins.
//
// The lock is never held across a network call.
//
// # Copies
//
// Snapshot and Lookup return deep copies; callers may mutate them freely.
package state
