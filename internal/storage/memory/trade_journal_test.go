package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

func TestTradeJournal_InsertAndGet(t *testing.T) {
	journal := NewTradeJournal()
	ctx := context.Background()

	for _, v := range []uint64{30, 10, 20} {
		err := journal.Insert(ctx, &domain.CopyTradeRecord{
			SessionID:     "s1",
			MasterVersion: v,
			Status:        domain.TradeStatusExecuted,
			ExecutedAt:    time.Now(),
		})
		if err != nil {
			t.Fatalf("Insert(%d) failed: %v", v, err)
		}
	}

	records, err := journal.GetBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySession failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []uint64{10, 20, 30} {
		if records[i].MasterVersion != want {
			t.Errorf("record %d: got version %d, want %d", i, records[i].MasterVersion, want)
		}
	}

	empty, _ := journal.GetBySession(ctx, "other")
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}
}

func TestTradeJournal_DuplicateKey(t *testing.T) {
	journal := NewTradeJournal()
	ctx := context.Background()

	r := &domain.CopyTradeRecord{SessionID: "s1", MasterVersion: 10, Status: domain.TradeStatusFailed}
	if err := journal.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := journal.Insert(ctx, r); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeJournal_InvalidStatus(t *testing.T) {
	journal := NewTradeJournal()

	err := journal.Insert(context.Background(), &domain.CopyTradeRecord{SessionID: "s1", Status: "PENDING"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
