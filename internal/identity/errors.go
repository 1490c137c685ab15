package identity

import "errors"

// Error taxonomy for the session lifecycle. Everything below is caught at the
// backend boundary: handlers and guards only ever observe a clean
// principal-or-nil outcome, never a raw provider or network error.
var (
	// ErrCallback marks a malformed or failed authorization response
	// (missing/invalid code or state). User-visible; retry by re-initiating
	// login. Non-fatal: no session state is touched.
	ErrCallback = errors.New("authorization callback failed")

	// ErrSilentRenewal marks a failed silent token renewal. Treated as
	// session loss: the session is revoked locally rather than serving a
	// possibly-stale token.
	ErrSilentRenewal = errors.New("silent renewal failed")

	// ErrBackendUnavailable marks a failed canonical-identity lookup.
	// Recovered by degrading to a claims-only profile; logged, never
	// surfaced to the end user as a hard error.
	ErrBackendUnavailable = errors.New("canonical identity unavailable")

	// ErrUnknownUser is returned by dev login when no user exists for the
	// given email. Distinguished from generic failure for clearer messaging.
	ErrUnknownUser = errors.New("unknown user")
)
