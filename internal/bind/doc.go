// Package bind owns the local side of the bridge: proxies for foreign-owned objects.
//
// Ownership boundary:
// - the registration table (handle -> proxy, outstanding local references)
// - fresh-object and adoption construction
// - live field access, equality, hashing and string snapshots
// - reference transfer when a handle crosses the boundary again
//
// A proxy never caches field values. Every accessor is one synchronous boundary
// call, so two reads in sequence may observe a foreign-side mutation in between.
// Nothing here times out or retries; callers layer that on top.
package bind
