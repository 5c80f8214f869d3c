package radio

import "errors"

var (
	// ErrAccessDenied means the requesting user does not share the bot's
	// voice channel. Safe to show to the user, never retried by the core.
	ErrAccessDenied = errors.New("access denied")

	// ErrConnectionNotReady means the voice connection did not reach the
	// ready state within the join timeout. Retryable.
	ErrConnectionNotReady = errors.New("voice connection not ready")

	// ErrSessionNotFound means no session exists for the guild, or it was
	// torn down while an operation was in flight.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStationNotFound means the requested station id does not resolve
	// in the store.
	ErrStationNotFound = errors.New("station not found")
)
