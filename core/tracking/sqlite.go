package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists deliveries to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS deliveries (
        event_id INTEGER NOT NULL,
        account_id TEXT NOT NULL,
        auction_uuid TEXT,
        finder TEXT,
        ts INTEGER,
        latency_ms INTEGER,
        PRIMARY KEY (event_id, account_id)
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RecordDelivery inserts d, ignoring rows already present.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, d Delivery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO deliveries (event_id, account_id, auction_uuid, finder, ts, latency_ms)
         VALUES (?, ?, ?, ?, ?, ?)`,
		d.EventID, d.AccountID, d.AuctionUUID, d.Finder, d.SendTime.UnixMilli(), d.Latency.Milliseconds())
	return err
}

// Query returns deliveries matching q ordered by send time.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Delivery, error) {
	var args []any
	query := `SELECT event_id, account_id, auction_uuid, finder, ts, latency_ms FROM deliveries WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixMilli())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixMilli())
	}
	if q.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, q.AccountID)
	}
	if q.EventID != 0 {
		query += ` AND event_id = ?`
		args = append(args, q.EventID)
	}
	query += ` ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Delivery
	for rows.Next() {
		var (
			d         Delivery
			ts, latMs int64
		)
		if err := rows.Scan(&d.EventID, &d.AccountID, &d.AuctionUUID, &d.Finder, &ts, &latMs); err != nil {
			return nil, err
		}
		d.SendTime = time.UnixMilli(ts)
		d.Latency = time.Duration(latMs) * time.Millisecond
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
