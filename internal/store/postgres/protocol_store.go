package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// ProtocolStore implements domain.ProtocolStore using PostgreSQL.
type ProtocolStore struct {
	pool *pgxpool.Pool
}

// NewProtocolStore creates a new ProtocolStore backed by the given connection pool.
func NewProtocolStore(pool *pgxpool.Pool) *ProtocolStore {
	return &ProtocolStore{pool: pool}
}

const protocolCols = `p.id, p.name, COALESCE(p.description, ''), COALESCE(p.website, ''),
	COALESCE(p.logo_url, ''), p.created_at,
	(SELECT COUNT(*) FROM markets mc WHERE mc.protocol_id = p.id)`

func scanProtocol(row pgx.Row) (domain.Protocol, error) {
	var p domain.Protocol
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Website, &p.LogoURL, &p.CreatedAt, &p.MarketCount)
	return p, err
}

// List returns every protocol ordered by name.
func (s *ProtocolStore) List(ctx context.Context) ([]domain.Protocol, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+protocolCols+` FROM protocols p ORDER BY p.name, p.id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list protocols: %w", err)
	}
	defer rows.Close()

	protocols := []domain.Protocol{}
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan protocol: %w", err)
		}
		protocols = append(protocols, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list protocols rows: %w", err)
	}
	return protocols, nil
}

// GetByID retrieves a protocol by its primary key.
func (s *ProtocolStore) GetByID(ctx context.Context, id string) (domain.Protocol, error) {
	p, err := scanProtocol(s.pool.QueryRow(ctx, `SELECT `+protocolCols+` FROM protocols p WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Protocol{}, domain.ErrNotFound
		}
		return domain.Protocol{}, fmt.Errorf("postgres: get protocol %s: %w", id, err)
	}
	return p, nil
}

// Compile-time interface check.
var _ domain.ProtocolStore = (*ProtocolStore)(nil)
