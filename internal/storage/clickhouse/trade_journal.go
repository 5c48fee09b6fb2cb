package clickhouse

import (
	"context"
	"fmt"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// TradeJournal implements storage.TradeJournal using ClickHouse.
// MergeTree does not enforce uniqueness, so Insert checks for the key first.
type TradeJournal struct {
	conn *Conn
}

// NewTradeJournal creates a new TradeJournal.
func NewTradeJournal(conn *Conn) *TradeJournal {
	return &TradeJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Insert appends a trade outcome. Returns ErrDuplicateKey if (session_id, master_version) exists.
func (j *TradeJournal) Insert(ctx context.Context, r *domain.CopyTradeRecord) error {
	if err := storage.ValidateTradeRecord(r); err != nil {
		return err
	}

	var count uint64
	err := j.conn.QueryRow(ctx, `
		SELECT count() FROM copy_trades
		WHERE session_id = ? AND master_version = ?
	`, r.SessionID, r.MasterVersion).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	err = j.conn.Exec(ctx, `
		INSERT INTO copy_trades (
			session_id, follower_id, master_address, master_version,
			input_asset, output_asset, amount_raw,
			tx_hash, status, reason, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.SessionID, r.FollowerID, r.MasterAddress, r.MasterVersion,
		r.InputAsset, r.OutputAsset, r.AmountRaw,
		r.TxHash, r.Status, r.Reason, r.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert copy trade: %w", err)
	}
	return nil
}

// GetBySession retrieves the outcomes of a session ordered by master_version ASC.
func (j *TradeJournal) GetBySession(ctx context.Context, sessionID string) ([]*domain.CopyTradeRecord, error) {
	rows, err := j.conn.Query(ctx, `
		SELECT
			session_id, follower_id, master_address, master_version,
			input_asset, output_asset, amount_raw,
			tx_hash, status, reason, executed_at
		FROM copy_trades
		WHERE session_id = ?
		ORDER BY master_version ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query copy trades: %w", err)
	}
	defer rows.Close()

	var result []*domain.CopyTradeRecord
	for rows.Next() {
		var r domain.CopyTradeRecord
		if err := rows.Scan(
			&r.SessionID, &r.FollowerID, &r.MasterAddress, &r.MasterVersion,
			&r.InputAsset, &r.OutputAsset, &r.AmountRaw,
			&r.TxHash, &r.Status, &r.Reason, &r.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan copy trade: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}
