package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carbonledger/analyst/internal/emissions"
)

// GetCatalog loads the organization's materials, categories and
// organizational units in declaration order.
func (s *Store) GetCatalog(ctx context.Context, organizationID string) (emissions.Catalog, error) {
	var (
		cat emissions.Catalog
		err error
	)
	cat.Materials, err = s.entries(ctx, `
		SELECT id, name, aliases, ''
		FROM materials WHERE organization_id = $1
		ORDER BY sort_order, id`, organizationID)
	if err != nil {
		return emissions.Catalog{}, fmt.Errorf("load materials: %w", err)
	}
	cat.Categories, err = s.entries(ctx, `
		SELECT id, name, aliases, ''
		FROM emission_categories WHERE organization_id = $1
		ORDER BY sort_order, id`, organizationID)
	if err != nil {
		return emissions.Catalog{}, fmt.Errorf("load categories: %w", err)
	}
	cat.OrganizationalUnits, err = s.entries(ctx, `
		SELECT id, name, aliases, kind
		FROM organizational_units WHERE organization_id = $1
		ORDER BY sort_order, id`, organizationID)
	if err != nil {
		return emissions.Catalog{}, fmt.Errorf("load organizational units: %w", err)
	}
	return cat, nil
}

func (s *Store) entries(ctx context.Context, sql, organizationID string) ([]emissions.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx, sql, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []emissions.CatalogEntry
	for rows.Next() {
		var (
			e    emissions.CatalogEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Aliases, &kind); err != nil {
			return nil, err
		}
		e.Kind = emissions.OrgUnitKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetFiscalYearStart returns the organization's fiscal year start month, or 0
// when the organization is unknown or has none configured.
func (s *Store) GetFiscalYearStart(ctx context.Context, organizationID string) (time.Month, error) {
	var month *int16
	err := s.pool.QueryRow(ctx, `
		SELECT fiscal_year_start FROM organizations WHERE id = $1`,
		organizationID,
	).Scan(&month)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get fiscal year start: %w", err)
	}
	if month == nil {
		return 0, nil
	}
	return time.Month(*month), nil
}
