package memory

import (
	"context"
	"sort"
	"sync"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// TradeJournal is an in-memory implementation of storage.TradeJournal.
type TradeJournal struct {
	mu      sync.RWMutex
	records map[string][]*domain.CopyTradeRecord // sessionID -> records
}

// NewTradeJournal creates a new in-memory trade journal.
func NewTradeJournal() *TradeJournal {
	return &TradeJournal{
		records: make(map[string][]*domain.CopyTradeRecord),
	}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Insert appends a trade outcome.
func (j *TradeJournal) Insert(_ context.Context, r *domain.CopyTradeRecord) error {
	if err := storage.ValidateTradeRecord(r); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, existing := range j.records[r.SessionID] {
		if existing.MasterVersion == r.MasterVersion {
			return storage.ErrDuplicateKey
		}
	}

	cp := *r
	j.records[r.SessionID] = append(j.records[r.SessionID], &cp)
	return nil
}

// GetBySession retrieves the outcomes of a session ordered by master version.
func (j *TradeJournal) GetBySession(_ context.Context, sessionID string) ([]*domain.CopyTradeRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	records := j.records[sessionID]
	result := make([]*domain.CopyTradeRecord, len(records))
	for i, r := range records {
		cp := *r
		result[i] = &cp
	}

	sort.Slice(result, func(a, b int) bool {
		return result[a].MasterVersion < result[b].MasterVersion
	})
	return result, nil
}
