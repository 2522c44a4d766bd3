package store

import (
	"context"
	"fmt"

	"github.com/carbonledger/analyst/internal/emissions"
)

// FetchEmissions returns the organization's records inside interval that match
// filters. A company-level kind filter matches every record.
func (s *Store) FetchEmissions(ctx context.Context, organizationID string, interval emissions.Interval, filters emissions.Filters) ([]emissions.Record, error) {
	kind := filters.OrgUnitKind
	if kind == emissions.OrgUnitCompany {
		kind = ""
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, organization_id, amount, material_type, category, org_unit_id, org_unit_kind, occurred_at
		FROM emission_records
		WHERE organization_id = $1
		  AND occurred_at >= $2 AND occurred_at < $3
		  AND ($4 = '' OR material_type = $4)
		  AND ($5 = '' OR category = $5)
		  AND ($6 = '' OR org_unit_id = $6)
		  AND ($7 = '' OR org_unit_kind = $7)
		ORDER BY occurred_at, id`,
		organizationID, interval.Start, interval.End,
		filters.MaterialType, filters.Category, filters.OrgUnitID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("query emission records: %w", err)
	}
	defer rows.Close()

	var out []emissions.Record
	for rows.Next() {
		var (
			r                                   emissions.Record
			material, category, unitID, unitKnd *string
		)
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.Amount, &material, &category, &unitID, &unitKnd, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan emission record: %w", err)
		}
		r.MaterialType = deref(material)
		r.Category = deref(category)
		r.OrgUnitID = deref(unitID)
		r.OrgUnitKind = emissions.OrgUnitKind(deref(unitKnd))
		r.OccurredAt = r.OccurredAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emission records: %w", err)
	}
	return out, nil
}
