package clinicAuth

import "errors"

var (
	// ErrValidation is returned when user input fails local validation. No
	// request is sent and the flow keeps its state.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is returned when an operation is not allowed from the
	// current verification state.
	ErrInvalidTransition = errors.New("invalid verification transition")
	// ErrBusy is returned while a previous operation on the same verification is
	// still waiting for the server.
	ErrBusy = errors.New("verification busy")
	// ErrStale is returned when a response arrives after the verification was
	// cancelled or its challenge replaced. The response is discarded.
	ErrStale = errors.New("stale verification response")
	// ErrCooldown is returned when a code is requested before the resend window
	// has elapsed.
	ErrCooldown = errors.New("resend cooldown active")
	// ErrCodeRejected is returned when the server rejects a submitted code as
	// invalid or expired.
	ErrCodeRejected = errors.New("verification code rejected")
	// ErrRegistrationUnsupported is returned when the role has no self-service
	// registration.
	ErrRegistrationUnsupported = errors.New("registration not supported for role")
	// ErrClientNotReady is returned when a Client is used before Build or after
	// Close.
	ErrClientNotReady = errors.New("client not ready")
	// ErrNotAuthenticated is returned by operations that need a session when
	// nobody is logged in.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidConfig is returned by Build when Config.Validate fails.
	ErrInvalidConfig = errors.New("invalid config")
)
