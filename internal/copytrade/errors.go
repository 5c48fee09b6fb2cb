package copytrade

import "errors"

var (
	// ErrSessionActive is returned when the (follower, master) pair already has an active session.
	ErrSessionActive = errors.New("copy trading already active for this master")

	// ErrSessionNotFound is returned when a session id is unknown or owned by another follower.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoWallet is returned when the follower has no default wallet.
	ErrNoWallet = errors.New("no default wallet")

	errManagerShutdown = errors.New("manager is shut down")
)
