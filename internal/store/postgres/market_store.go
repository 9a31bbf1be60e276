package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// List returns a page of markets matching f, newest first, each with its
// protocol and bet count.
func (s *MarketStore) List(ctx context.Context, f domain.MarketFilter, page domain.Page) ([]domain.Market, error) {
	q, _ := marketQueries(f, page)
	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	markets := make([]domain.Market, 0, page.Limit)
	for rows.Next() {
		var r marketRow
		if err := rows.Scan(r.targets()...); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		m, err := r.market()
		if err != nil {
			return nil, fmt.Errorf("postgres: decode market %s: %w", r.m.ID, err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the number of markets matching f.
func (s *MarketStore) Count(ctx context.Context, f domain.MarketFilter) (int64, error) {
	_, q := marketQueries(f, domain.Page{})
	var count int64
	err := s.pool.QueryRow(ctx, q.sql, q.args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// Exists reports whether a market with the given id is stored.
func (s *MarketStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: market exists %s: %w", id, err)
	}
	return exists, nil
}

// GetDetail returns a market with its most recent bets, its resolution event
// and its most recent yield deposits. The three child queries travel in one
// batch.
func (s *MarketStore) GetDetail(ctx context.Context, id string, recentBets, recentDeposits int) (domain.MarketDetail, error) {
	var r marketRow
	err := s.pool.QueryRow(ctx, `SELECT `+marketCols+marketFrom+` WHERE m.id = $1`, id).Scan(r.targets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketDetail{}, domain.ErrNotFound
		}
		return domain.MarketDetail{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	m, err := r.market()
	if err != nil {
		return domain.MarketDetail{}, fmt.Errorf("postgres: decode market %s: %w", id, err)
	}

	detail := domain.MarketDetail{
		Market:        m,
		RecentBets:    []domain.Bet{},
		YieldDeposits: []domain.YieldDeposit{},
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		SELECT id, market_id, bettor, position, amount::text, placed_at, COALESCE(tx_digest, '')
		FROM bets WHERE market_id = $1
		ORDER BY placed_at DESC, id DESC LIMIT $2`, id, recentBets)
	batch.Queue(`
		SELECT id, market_id, outcome, resolved_at, COALESCE(tx_digest, '')
		FROM market_resolved_events WHERE market_id = $1`, id)
	batch.Queue(`
		SELECT id, market_id, protocol_id, amount::text, deposited_at
		FROM yield_deposits WHERE market_id = $1
		ORDER BY deposited_at DESC, id DESC LIMIT $2`, id, recentDeposits)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	if detail.RecentBets, err = scanBets(br); err != nil {
		return domain.MarketDetail{}, fmt.Errorf("postgres: market %s bets: %w", id, err)
	}

	var ev domain.MarketResolvedEvent
	err = br.QueryRow().Scan(&ev.ID, &ev.MarketID, &ev.Outcome, &ev.ResolvedAt, &ev.TxDigest)
	switch {
	case err == nil:
		detail.Resolution = &ev
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return domain.MarketDetail{}, fmt.Errorf("postgres: market %s resolution: %w", id, err)
	}

	if detail.YieldDeposits, err = scanDeposits(br); err != nil {
		return domain.MarketDetail{}, fmt.Errorf("postgres: market %s deposits: %w", id, err)
	}

	return detail, nil
}

func scanBets(br pgx.BatchResults) ([]domain.Bet, error) {
	rows, err := br.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bets := []domain.Bet{}
	for rows.Next() {
		var b domain.Bet
		var position, amount string
		if err := rows.Scan(&b.ID, &b.MarketID, &b.Bettor, &position, &amount, &b.PlacedAt, &b.TxDigest); err != nil {
			return nil, err
		}
		b.Position = domain.BetPosition(position)
		if b.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func scanDeposits(br pgx.BatchResults) ([]domain.YieldDeposit, error) {
	rows, err := br.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deposits := []domain.YieldDeposit{}
	for rows.Next() {
		var d domain.YieldDeposit
		var amount string
		if err := rows.Scan(&d.ID, &d.MarketID, &d.ProtocolID, &amount, &d.DepositedAt); err != nil {
			return nil, err
		}
		if d.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
