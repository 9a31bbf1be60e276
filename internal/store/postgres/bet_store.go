package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betFrom = ` FROM bets b
	JOIN markets m ON m.id = b.market_id
	LEFT JOIN protocols p ON p.id = m.protocol_id
	LEFT JOIN winnings_claimed w ON w.bet_id = b.id`

const betCols = `b.id, b.market_id, b.bettor, b.position, b.amount::text, b.placed_at,
	COALESCE(b.tx_digest, ''), ` + marketCols + `,
	w.id, COALESCE(w.winner, ''), w.winning_amount::text, w.yield_share::text, w.claimed_at`

// betRow holds scan targets for betCols.
type betRow struct {
	b        domain.Bet
	position string
	amount   string
	market   marketRow
	claimID  *string
	winner   string
	winAmt   *string
	yieldAmt *string
	claimed  *time.Time
}

func (r *betRow) targets() []any {
	t := []any{&r.b.ID, &r.b.MarketID, &r.b.Bettor, &r.position, &r.amount, &r.b.PlacedAt, &r.b.TxDigest}
	t = append(t, r.market.targets()...)
	return append(t, &r.claimID, &r.winner, &r.winAmt, &r.yieldAmt, &r.claimed)
}

func (r *betRow) bet() (domain.Bet, error) {
	b := r.b
	b.Position = domain.BetPosition(r.position)

	var err error
	if b.Amount, err = parseDecimal(r.amount); err != nil {
		return domain.Bet{}, err
	}

	m, err := r.market.market()
	if err != nil {
		return domain.Bet{}, err
	}
	b.Market = &m

	if r.claimID != nil {
		w := &domain.WinningsClaimed{ID: *r.claimID, BetID: b.ID, Winner: r.winner}
		if r.claimed != nil {
			w.ClaimedAt = *r.claimed
		}
		if w.WinningAmount, err = parseNullDecimal(r.winAmt); err != nil {
			return domain.Bet{}, err
		}
		if w.YieldShare, err = parseNullDecimal(r.yieldAmt); err != nil {
			return domain.Bet{}, err
		}
		b.Winnings = w
	}
	return b, nil
}

// List returns a page of bets matching f, newest first, each with its market
// (and protocol) and winnings claim.
func (s *BetStore) List(ctx context.Context, f domain.BetFilter, page domain.Page) ([]domain.Bet, error) {
	q, _ := betQueries(f, page)
	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	bets := make([]domain.Bet, 0, page.Limit)
	for rows.Next() {
		var r betRow
		if err := rows.Scan(r.targets()...); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		b, err := r.bet()
		if err != nil {
			return nil, fmt.Errorf("postgres: decode bet %s: %w", r.b.ID, err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// Count returns the number of bets matching f.
func (s *BetStore) Count(ctx context.Context, f domain.BetFilter) (int64, error) {
	_, q := betQueries(f, domain.Page{})
	var count int64
	err := s.pool.QueryRow(ctx, q.sql, q.args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return count, nil
}

// GetByID retrieves a bet with its market and claim.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	var r betRow
	err := s.pool.QueryRow(ctx, `SELECT `+betCols+betFrom+` WHERE b.id = $1`, id).Scan(r.targets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	b, err := r.bet()
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: decode bet %s: %w", id, err)
	}
	return b, nil
}

// Chart aggregates bet volume per time bucket for a market. The most recent
// limit buckets are returned oldest first.
func (s *BetStore) Chart(ctx context.Context, marketID string, interval domain.ChartInterval, limit int) ([]domain.ChartPoint, error) {
	const query = `
		SELECT date_trunc($2::text, b.placed_at) AS bucket,
			COALESCE(SUM(b.amount) FILTER (WHERE b.position = 'yes'), 0)::text,
			COALESCE(SUM(b.amount) FILTER (WHERE b.position = 'no'), 0)::text,
			COUNT(*)
		FROM bets b
		WHERE b.market_id = $1
		GROUP BY bucket
		ORDER BY bucket DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, marketID, string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: chart market %s: %w", marketID, err)
	}
	defer rows.Close()

	points := []domain.ChartPoint{}
	for rows.Next() {
		var pt domain.ChartPoint
		var yes, no string
		if err := rows.Scan(&pt.Bucket, &yes, &no, &pt.BetCount); err != nil {
			return nil, fmt.Errorf("postgres: scan chart point: %w", err)
		}
		if pt.YesAmount, err = parseDecimal(yes); err != nil {
			return nil, fmt.Errorf("postgres: chart yes amount: %w", err)
		}
		if pt.NoAmount, err = parseDecimal(no); err != nil {
			return nil, fmt.Errorf("postgres: chart no amount: %w", err)
		}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: chart rows: %w", err)
	}

	slices.Reverse(points)
	return points, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
