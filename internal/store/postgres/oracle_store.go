package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// OracleStore implements domain.OracleStore using PostgreSQL.
type OracleStore struct {
	pool *pgxpool.Pool
}

// NewOracleStore creates a new OracleStore backed by the given connection pool.
func NewOracleStore(pool *pgxpool.Pool) *OracleStore {
	return &OracleStore{pool: pool}
}

// SaveLatest upserts the latest price for the asset and appends a history
// row in the same transaction.
func (s *OracleStore) SaveLatest(ctx context.Context, p domain.OraclePrice) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin oracle tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO oracle_prices (
			asset, vs_currency, price, source, source_updated_at, fetched_at, updated_at
		) VALUES ($1, $2, $3::numeric, $4, $5, $6, NOW())
		ON CONFLICT (asset) DO UPDATE SET
			vs_currency       = EXCLUDED.vs_currency,
			price             = EXCLUDED.price,
			source            = EXCLUDED.source,
			source_updated_at = EXCLUDED.source_updated_at,
			fetched_at        = EXCLUDED.fetched_at,
			updated_at        = NOW()`

	price := p.Price.String()
	if _, err := tx.Exec(ctx, upsert,
		p.Asset, p.VsCurrency, price, p.Source, p.SourceUpdatedAt, p.FetchedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert oracle price %s: %w", p.Asset, err)
	}

	const history = `
		INSERT INTO oracle_price_history (
			asset, vs_currency, price, source, source_updated_at, fetched_at
		) VALUES ($1, $2, $3::numeric, $4, $5, $6)`

	if _, err := tx.Exec(ctx, history,
		p.Asset, p.VsCurrency, price, p.Source, p.SourceUpdatedAt, p.FetchedAt,
	); err != nil {
		return fmt.Errorf("postgres: append oracle history %s: %w", p.Asset, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit oracle price %s: %w", p.Asset, err)
	}
	return nil
}

const oracleCols = `asset, vs_currency, price::text, source, source_updated_at, fetched_at`

func scanOraclePrice(row pgx.Row) (domain.OraclePrice, error) {
	var p domain.OraclePrice
	var price string
	if err := row.Scan(&p.Asset, &p.VsCurrency, &price, &p.Source, &p.SourceUpdatedAt, &p.FetchedAt); err != nil {
		return domain.OraclePrice{}, err
	}
	d, err := parseDecimal(price)
	if err != nil {
		return domain.OraclePrice{}, err
	}
	p.Price = d
	return p, nil
}

// GetLatest returns the current price row for the asset.
func (s *OracleStore) GetLatest(ctx context.Context, asset string) (domain.OraclePrice, error) {
	p, err := scanOraclePrice(s.pool.QueryRow(ctx,
		`SELECT `+oracleCols+` FROM oracle_prices WHERE asset = $1`, asset))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OraclePrice{}, domain.ErrNotFound
		}
		return domain.OraclePrice{}, fmt.Errorf("postgres: get oracle price %s: %w", asset, err)
	}
	return p, nil
}

// ListHistory returns a page of history rows for the asset, newest first.
func (s *OracleStore) ListHistory(ctx context.Context, asset string, page domain.Page) ([]domain.OraclePrice, error) {
	return s.queryHistory(ctx,
		`SELECT `+oracleCols+` FROM oracle_price_history WHERE asset = $1
		ORDER BY fetched_at DESC, id DESC LIMIT $2 OFFSET $3`,
		asset, page.Limit, page.Offset)
}

// CountHistory returns the number of history rows stored for the asset.
func (s *OracleStore) CountHistory(ctx context.Context, asset string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM oracle_price_history WHERE asset = $1`, asset).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count oracle history %s: %w", asset, err)
	}
	return count, nil
}

// ListHistoryBefore returns every history row fetched strictly before the
// cutoff, oldest first.
func (s *OracleStore) ListHistoryBefore(ctx context.Context, asset string, before time.Time) ([]domain.OraclePrice, error) {
	return s.queryHistory(ctx,
		`SELECT `+oracleCols+` FROM oracle_price_history WHERE asset = $1 AND fetched_at < $2
		ORDER BY fetched_at, id`,
		asset, before)
}

// DeleteHistoryBefore removes history rows fetched strictly before the cutoff.
func (s *OracleStore) DeleteHistoryBefore(ctx context.Context, asset string, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM oracle_price_history WHERE asset = $1 AND fetched_at < $2`, asset, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete oracle history %s: %w", asset, err)
	}
	return tag.RowsAffected(), nil
}

func (s *OracleStore) queryHistory(ctx context.Context, query string, args ...any) ([]domain.OraclePrice, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list oracle history: %w", err)
	}
	defer rows.Close()

	prices := []domain.OraclePrice{}
	for rows.Next() {
		p, err := scanOraclePrice(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan oracle history: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list oracle history rows: %w", err)
	}
	return prices, nil
}

// Compile-time interface check.
var _ domain.OracleStore = (*OracleStore)(nil)
