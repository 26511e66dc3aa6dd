package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// CurrencyStore implements domain.CurrencyPrecisionStore using PostgreSQL.
type CurrencyStore struct {
	pool *pgxpool.Pool
}

// NewCurrencyStore creates a new CurrencyStore backed by the given connection pool.
func NewCurrencyStore(pool *pgxpool.Pool) *CurrencyStore {
	return &CurrencyStore{pool: pool}
}

// Get returns the override for one venue currency, or domain.ErrNotFound.
func (s *CurrencyStore) Get(ctx context.Context, venueID, currency string) (domain.CurrencyPrecision, error) {
	const query = `
		SELECT venue_id, currency, precision, updated_at
		FROM venue_currency_precision
		WHERE venue_id = $1 AND currency = $2`

	var p domain.CurrencyPrecision
	err := s.pool.QueryRow(ctx, query, venueID, strings.ToUpper(currency)).Scan(
		&p.VenueID, &p.Currency, &p.Precision, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CurrencyPrecision{}, domain.ErrNotFound
		}
		return domain.CurrencyPrecision{}, fmt.Errorf("postgres: get precision %s %s: %w", venueID, currency, err)
	}
	return p, nil
}

// ListByVenue returns every override of a venue ordered by currency.
func (s *CurrencyStore) ListByVenue(ctx context.Context, venueID string) ([]domain.CurrencyPrecision, error) {
	const query = `
		SELECT venue_id, currency, precision, updated_at
		FROM venue_currency_precision
		WHERE venue_id = $1
		ORDER BY currency`

	rows, err := s.pool.Query(ctx, query, venueID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list precision %s: %w", venueID, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CurrencyPrecision, error) {
		var p domain.CurrencyPrecision
		err := row.Scan(&p.VenueID, &p.Currency, &p.Precision, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan precision %s: %w", venueID, err)
	}
	return out, nil
}

// Upsert inserts or replaces an override. UpdatedAt is set by the database.
func (s *CurrencyStore) Upsert(ctx context.Context, p domain.CurrencyPrecision) error {
	const query = `
		INSERT INTO venue_currency_precision (venue_id, currency, precision)
		VALUES ($1, $2, $3)
		ON CONFLICT (venue_id, currency) DO UPDATE SET
			precision  = EXCLUDED.precision,
			updated_at = NOW()`

	if p.Precision < 0 {
		return fmt.Errorf("postgres: upsert precision %s %s: negative precision %d", p.VenueID, p.Currency, p.Precision)
	}
	if _, err := s.pool.Exec(ctx, query, p.VenueID, strings.ToUpper(p.Currency), p.Precision); err != nil {
		return fmt.Errorf("postgres: upsert precision %s %s: %w", p.VenueID, p.Currency, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CurrencyPrecisionStore = (*CurrencyStore)(nil)
