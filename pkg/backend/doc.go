// Package backend defines the contract between the portal and the external
// backend-as-a-service that owns authentication, tables and file storage.
//
// The portal never hashes passwords, issues sessions or enforces row-level
// access itself. It talks to the service through three interfaces:
//
//   - AuthClient - sessions, password sign-in, one-time codes, sign-up
//   - DataStore  - profiles, cases and time entries
//   - FileStore  - profile photo uploads
//
// A Connector hands out one Handle per visitor, so each browser keeps its own
// session while the configuration and HTTP transport stay process-wide.
//
// # Implementations
//
//   - backend/supabase - REST client for GoTrue, PostgREST and Storage
//   - backend/memory   - in-process emulator for local development and tests
//   - backend/postgres - DataStore reading the tables directly through pgx
//
// # Auth events
//
// Clients publish AuthEvent values through a Hub whenever their session
// changes. Subscribe returns a Subscription that must be released with
// Unsubscribe when the subscriber goes away.
//
//	sub := handle.Auth.Subscribe(func(ev backend.AuthEvent) {
//		slog.Info("auth change", "kind", ev.Kind)
//	})
//	defer sub.Unsubscribe()
package backend
