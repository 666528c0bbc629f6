package gosession

import "errors"

var (
	// ErrInvalidCredential is the generic rejection for refresh and
	// verify. Malformed, expired, revoked, replayed, and device-bound
	// failures all collapse into it so callers cannot use the error as
	// a verification oracle. The precise cause goes to audit and
	// metrics only.
	ErrInvalidCredential = errors.New("invalid or expired credential")
	// ErrAccountInactive is returned when the tenant account is
	// deactivated. It surfaces distinctly because the legitimate caller
	// already knows their account state.
	ErrAccountInactive = errors.New("account inactive")
	// ErrBlacklisted marks an access token revoked before its natural
	// expiry. Exposed for introspection APIs; Verify still reports
	// ErrInvalidCredential.
	ErrBlacklisted = errors.New("token blacklisted")
	// ErrSessionRevoked marks a terminally revoked family.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrDeviceMismatch marks a device-binding failure.
	ErrDeviceMismatch = errors.New("device mismatch")
	// ErrConcurrencyConflict is returned when rotation lost a lock
	// contest and the caller may retry.
	ErrConcurrencyConflict = errors.New("concurrent rotation conflict")
	// ErrStoreUnavailable is returned when the session store cannot be
	// reached. Refresh fails closed on it.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on
	// a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
