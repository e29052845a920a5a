package tokens

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists token records in the tokens table. Each Persist
// replaces the table contents with the given snapshot inside one
// transaction, so readers never observe a partially written state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token, client_id, issued_at, used, status, last_seen, actual_host, connected_ip
		FROM tokens
		ORDER BY issued_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var actualHost, connectedIP *string
		if err := rows.Scan(
			&rec.Token, &rec.ClientID, &rec.IssuedAt, &rec.Used,
			&rec.Status, &rec.LastSeen, &actualHost, &connectedIP,
		); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		if actualHost != nil {
			rec.ActualHost = *actualHost
		}
		if connectedIP != nil {
			rec.ConnectedIP = *connectedIP
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read token rows: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Persist(ctx context.Context, records []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin token tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tokens`); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO tokens (token, client_id, issued_at, used, status, last_seen, actual_host, connected_ip)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.Token, rec.ClientID, rec.IssuedAt, rec.Used,
			rec.Status, rec.LastSeen, nullable(rec.ActualHost), nullable(rec.ConnectedIP))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert tokens: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit token tx: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
