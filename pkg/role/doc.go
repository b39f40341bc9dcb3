// Package role resolves which dashboard a signed-in visitor gets.
//
// A profile carries a free-form role tag ("admin", "trabajador", "cliente").
// Parse turns it into the closed Role type and Match is the single place
// that branches on it:
//
//	view := role.Match(r,
//		func() string { return "admin" },
//		func() string { return "staff" },
//		func() string { return "client" },
//		func() string { return "access_denied" },
//	)
//
// Resolver fetches the tag once per session. A failed fetch and a missing
// tag both resolve to Unknown, which only offers sign-out; the failure is
// logged at error level so the two cases can be told apart in the logs.
package role
