package notify

import (
	"context"
	"errors"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// Journal records trade outcomes in a storage.TradeJournal.
// Detection events and failures not tied to a master version are not recorded.
type Journal struct {
	journal storage.TradeJournal
}

// NewJournal creates a journaling notifier.
func NewJournal(journal storage.TradeJournal) *Journal {
	return &Journal{journal: journal}
}

var _ Notifier = (*Journal)(nil)

// Name implements Named.
func (j *Journal) Name() string { return "journal" }

// Notify appends executed and failed trades.
func (j *Journal) Notify(ctx context.Context, event domain.Event) error {
	record := RecordFromEvent(event)
	if record == nil {
		return nil
	}
	err := j.journal.Insert(ctx, record)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// RecordFromEvent converts an outcome event into a journal record; nil for other events.
func RecordFromEvent(event domain.Event) *domain.CopyTradeRecord {
	meta := event.Meta()
	record := &domain.CopyTradeRecord{
		SessionID:     meta.SessionID,
		FollowerID:    meta.FollowerID,
		MasterAddress: meta.MasterAddress,
		ExecutedAt:    meta.OccurredAt,
	}

	switch e := event.(type) {
	case domain.TradeExecuted:
		record.MasterVersion = e.Version
		record.InputAsset = e.InputAsset
		record.OutputAsset = e.OutputAsset
		record.AmountRaw = e.Amount
		record.TxHash = e.TxHash
		record.Status = domain.TradeStatusExecuted
	case domain.TradeFailed:
		if e.Version == 0 {
			return nil
		}
		record.MasterVersion = e.Version
		record.InputAsset = e.InputAsset
		record.OutputAsset = e.OutputAsset
		record.AmountRaw = e.Amount
		record.TxHash = e.TxHash
		record.Status = domain.TradeStatusFailed
		record.Reason = e.Reason
	default:
		return nil
	}
	return record
}
