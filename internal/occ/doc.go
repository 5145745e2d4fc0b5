// Package occ implements optimistic concurrency control for records shared by
// both members of a couple.
//
// A mutation is expressed as a Guard (load, mutate, conditional commit). The
// Coordinator executes the guard under a per-call-site Policy, re-running the
// whole guard on a stale-version conflict, and converts a conflict that
// survives the policy into an apperr UPDATE_CONFLICT. The storage-level
// conflict type never escapes Coordinator.Execute.
package occ
