package domain

// Wallet is a follower's signing wallet as recorded by the custody collaborator.
// Corresponds to wallets table in PostgreSQL (read-only for the engine).
type Wallet struct {
	ID         int64
	FollowerID string
	Address    string
	PrivateKey string // hex, optionally prefixed with ed25519-priv- or 0x
	IsDefault  bool
}
