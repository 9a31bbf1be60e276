package postgres

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// sqlWhere accumulates AND-ed predicates with positional arguments. Clauses
// are written with a single %d verb that receives the argument index.
type sqlWhere struct {
	clauses []string
	args    []any
}

func (w *sqlWhere) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

// String renders the WHERE clause, or an empty string when unconstrained.
func (w *sqlWhere) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// paginate appends LIMIT/OFFSET arguments and returns the SQL suffix.
func (w *sqlWhere) paginate(p domain.Page) string {
	w.args = append(w.args, p.Limit)
	limitIdx := len(w.args)
	w.args = append(w.args, p.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", limitIdx, len(w.args))
}

// boundQuery is SQL text with its positional arguments.
type boundQuery struct {
	sql  string
	args []any
}

// marketQueries builds the page query and the count query for f. Both share
// the same WHERE clause and filter arguments, so the count is always the
// total for the page's filter.
func marketQueries(f domain.MarketFilter, page domain.Page) (list, count boundQuery) {
	w := marketWhere(f)
	where := w.String()
	count = boundQuery{sql: `SELECT COUNT(*) FROM markets m` + where, args: slices.Clone(w.args)}
	list.sql = `SELECT ` + marketCols + marketFrom + where +
		` ORDER BY m.created_at DESC, m.id DESC` + w.paginate(page)
	list.args = w.args
	return list, count
}

// betQueries builds the page query and the count query for f.
func betQueries(f domain.BetFilter, page domain.Page) (list, count boundQuery) {
	w := betWhere(f)
	where := w.String()
	count = boundQuery{sql: `SELECT COUNT(*) FROM bets b` + where, args: slices.Clone(w.args)}
	list.sql = `SELECT ` + betCols + betFrom + where +
		` ORDER BY b.placed_at DESC, b.id DESC` + w.paginate(page)
	list.args = w.args
	return list, count
}

// marketWhere translates a MarketFilter into SQL over the "m" alias.
func marketWhere(f domain.MarketFilter) *sqlWhere {
	w := &sqlWhere{}
	if f.Status != "" {
		w.add("m.status = $%d", string(f.Status))
	}
	if f.ProtocolID != "" {
		w.add("m.protocol_id = $%d", f.ProtocolID)
	}
	return w
}

// betWhere translates a BetFilter into SQL over the "b" alias.
func betWhere(f domain.BetFilter) *sqlWhere {
	w := &sqlWhere{}
	if f.MarketID != "" {
		w.add("b.market_id = $%d", f.MarketID)
	}
	if f.Bettor != "" {
		w.add("lower(b.bettor) = $%d", strings.ToLower(f.Bettor))
	}
	if f.Position != "" {
		w.add("b.position = $%d", string(f.Position))
	}
	return w
}

// NUMERIC columns are selected as text so no precision is lost on the way
// into decimal.Decimal.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

const marketFrom = ` FROM markets m LEFT JOIN protocols p ON p.id = m.protocol_id`

const marketCols = `m.id, m.question, COALESCE(m.description, ''), m.status, m.protocol_id,
	m.end_date, m.total_yes_amount::text, m.total_no_amount::text, m.created_at, m.updated_at,
	p.id, COALESCE(p.name, ''), COALESCE(p.description, ''), COALESCE(p.website, ''),
	COALESCE(p.logo_url, ''), p.created_at,
	(SELECT COUNT(*) FROM bets bc WHERE bc.market_id = m.id)`

// marketRow holds scan targets for marketCols.
type marketRow struct {
	m          domain.Market
	status     string
	totalYes   string
	totalNo    string
	protoID    *string
	proto      domain.Protocol
	protoCreat *time.Time
}

func (r *marketRow) targets() []any {
	return []any{
		&r.m.ID, &r.m.Question, &r.m.Description, &r.status, &r.m.ProtocolID,
		&r.m.EndDate, &r.totalYes, &r.totalNo, &r.m.CreatedAt, &r.m.UpdatedAt,
		&r.protoID, &r.proto.Name, &r.proto.Description, &r.proto.Website,
		&r.proto.LogoURL, &r.protoCreat,
		&r.m.BetCount,
	}
}

func (r *marketRow) market() (domain.Market, error) {
	m := r.m
	m.Status = domain.MarketStatus(r.status)

	var err error
	if m.TotalYes, err = parseDecimal(r.totalYes); err != nil {
		return domain.Market{}, err
	}
	if m.TotalNo, err = parseDecimal(r.totalNo); err != nil {
		return domain.Market{}, err
	}

	if r.protoID != nil {
		p := r.proto
		p.ID = *r.protoID
		if r.protoCreat != nil {
			p.CreatedAt = *r.protoCreat
		}
		m.Protocol = &p
	}
	return m, nil
}
