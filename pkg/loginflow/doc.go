// Package loginflow implements the portal's two-step login.
//
// The external auth service checks the password, but a password alone never
// yields a usable session. The flow is:
//
//  1. SubmitCredentials - sign in with the password, sign the resulting
//     session straight back out, then ask the service to email a one-time
//     code (never creating an account for an unknown email).
//  2. SubmitCode - verify the code; the service issues the real session and
//     announces it through its auth-change notifications.
//
// ReturnToStart abandons the attempt at any point before verification.
//
// # The in-progress flag
//
// Between the password check and the code verification a session may briefly
// exist. The container cannot tell that apart from a finished login by
// session presence, so the machine raises MFAInProgress on the shared
// session.Mirror before the first network call and lowers it only when the
// code is verified, a step fails, or the visitor returns to start. While it
// is raised the container keeps showing the login screen.
//
// The machine's own sign-out of the password session is announced to the
// mirror so the resulting sign-out notification does not lower the flag.
//
// # Concurrency
//
// One request is outstanding at a time; a second submit gets ErrBusy. Every
// request carries the attempt number it was issued for. ReturnToStart bumps
// the attempt, so a late response is discarded (ErrStale) instead of
// resurrecting an abandoned flow. A discarded response that left a session
// behind is signed out when the flow is idle.
//
// # Usage
//
//	mirror := session.NewMirror()
//	machine := loginflow.NewMachine(handle.Auth, mirror,
//		loginflow.WithInvalidateIntermediateSession(true),
//	)
//
//	state, err := machine.SubmitCredentials(ctx, "a@b.com", "secret")
//	if fe, ok := loginflow.AsError(err); ok {
//		// fe.Message is safe to show
//	}
//	state, err = machine.SubmitCode(ctx, "123456")
package loginflow
