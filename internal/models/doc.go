// Package models defines the client-side view of the chama domain.
//
// Every entity here is owned and persisted by the remote finance backend. The
// client only holds transient, cached copies that are replaced wholesale on
// each successful fetch.
//
// # Snapshots
//
// GroupSnapshot is the aggregate kept fresh by the live synchronizer. It is
// never merged field by field: a newer snapshot replaces the older one.
//
// # Events
//
// Event is an invalidation hint delivered over the realtime channel. Its
// payload is informational only and must not be applied to a snapshot.
//
// # Identifiers
//
// The backend uses integer identifiers. Some endpoints historically encode them
// as strings or under alternate keys (`withdrawal_id`); the gateway adapter
// normalizes those before they reach these types.
package models
