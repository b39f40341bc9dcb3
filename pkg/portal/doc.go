// Package portal assembles one visitor's portal from the session observer,
// the login flow and the role resolver, and keeps those shells in a registry
// with idle expiry.
//
// A shell renders one of four views:
//
//   - loading: the initial session has not been read yet
//   - login: no session, or the one-time code step is still in progress
//   - dashboard: an authenticated visitor with a recognised role
//   - access_denied: authenticated, but the role is missing or unreadable
//
// Basic usage:
//
//	registry := portal.NewRegistry(connector,
//		portal.WithIdleTimeout(30*time.Minute),
//		portal.WithShellOptions(portal.WithMultiRole(true)),
//	)
//	defer registry.Close()
//
//	shell, err := registry.Create(ctx)
//	view := shell.View(ctx)
package portal
