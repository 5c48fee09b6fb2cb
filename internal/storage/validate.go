package storage

import (
	"fmt"

	"aptos-copytrade/internal/domain"
)

// ValidateSession checks the fields every store requires before Create.
func ValidateSession(s *domain.CopyTradeSession) error {
	switch {
	case s == nil:
		return ErrInvalidInput
	case s.ID == "":
		return fmt.Errorf("%w: empty session id", ErrInvalidInput)
	case s.FollowerID == "":
		return fmt.Errorf("%w: empty follower id", ErrInvalidInput)
	case s.MasterAddress == "":
		return fmt.Errorf("%w: empty master address", ErrInvalidInput)
	}
	return nil
}

// ValidateTradeRecord checks the fields every journal requires before Insert.
func ValidateTradeRecord(r *domain.CopyTradeRecord) error {
	switch {
	case r == nil:
		return ErrInvalidInput
	case r.SessionID == "":
		return fmt.Errorf("%w: empty session id", ErrInvalidInput)
	case r.Status != domain.TradeStatusExecuted && r.Status != domain.TradeStatusFailed:
		return fmt.Errorf("%w: status %q", ErrInvalidInput, r.Status)
	}
	return nil
}
