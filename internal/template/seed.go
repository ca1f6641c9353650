package template

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seed inserts indicators whose code is not in the database yet. Existing
// indicators are never overwritten, so edits made through the API survive
// restarts. Returns how many rows were inserted.
func Seed(ctx context.Context, pool *pgxpool.Pool, inds []Indicator) (int, error) {
	inserted := 0
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, ind := range inds {
			var calc interface{}
			if len(ind.CalculationSchema) > 0 {
				calc = []byte(ind.CalculationSchema)
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO indicators (code, name, description, governance_area,
				    form_schema, mov_checklist, calculation_schema)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (code) DO NOTHING
			`, ind.Code, ind.Name, ind.Description, ind.GovernanceArea,
				[]byte(ind.FormSchema), []byte(ind.MOVChecklist), calc)
			if err != nil {
				return fmt.Errorf("seed indicator %s: %w", ind.Code, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
