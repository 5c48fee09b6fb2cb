package domain

import (
	"strings"
	"time"
)

// CopyTradeSession links a follower account to the master address it mirrors.
// Corresponds to copy_trading table in PostgreSQL.
type CopyTradeSession struct {
	ID              string    // UUID assigned at creation
	FollowerID      string    // opaque follower identifier (chat user id in the bot)
	MasterAddress   string    // observed chain address
	Active          bool      // false once a stop request has been recorded
	LastSeenVersion uint64    // highest master transaction version already processed
	CreatedAt       time.Time // record creation time
	UpdatedAt       time.Time // last watermark or status change
}

// PairKey identifies a (follower, master) pair. It is comparable and used as a map key.
type PairKey struct {
	FollowerID    string
	MasterAddress string
}

// NewPairKey builds the key of a pair. Master addresses compare case-insensitively.
func NewPairKey(followerID, masterAddress string) PairKey {
	return PairKey{FollowerID: followerID, MasterAddress: NormalizeAddress(masterAddress)}
}

func (k PairKey) String() string {
	return k.FollowerID + "/" + k.MasterAddress
}

// Key returns the registry key of the session's (follower, master) pair.
func (s *CopyTradeSession) Key() PairKey {
	return NewPairKey(s.FollowerID, s.MasterAddress)
}

// NormalizeAddress trims and lowercases a chain address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// maxAddressHexLen is the hex length of a full 32-byte account address.
const maxAddressHexLen = 64

// IsValidAddress reports whether addr is 0x followed by 1 to 64 hex digits.
// Short forms such as 0x1 are accepted.
func IsValidAddress(addr string) bool {
	digits, ok := strings.CutPrefix(addr, "0x")
	if !ok || len(digits) == 0 || len(digits) > maxAddressHexLen {
		return false
	}
	for _, c := range digits {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ShortAddress renders an address as 0x1234ab…cdef for messages and logs.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-4:]
}
