package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
)

// appendBarangayScope adds a barangay filter to a dynamic WHERE clause.
// colExpr is the SQL column to filter on (e.g. "a.barangay_id").
// Users with global scope get no filter.
func appendBarangayScope(ctx context.Context, where string, args []interface{}, argIdx int, colExpr string) (string, []interface{}, int) {
	scope := ctxkeys.GetBarangayScope(ctx)
	if scope == "" {
		return where, args, argIdx
	}
	where += fmt.Sprintf(" AND %s = $%d", colExpr, argIdx)
	args = append(args, scope)
	argIdx++
	return where, args, argIdx
}

// checkBarangayAccess verifies that barangayID is within the user's scope.
func checkBarangayAccess(ctx context.Context, barangayID string) bool {
	scope := ctxkeys.GetBarangayScope(ctx)
	return scope == "" || scope == barangayID
}

// checkAssessmentAccess looks up the assessment's barangay and checks scope.
func checkAssessmentAccess(ctx context.Context, pool *pgxpool.Pool, assessmentID string) bool {
	if ctxkeys.IsGlobalScope(ctx) {
		return true
	}
	var barangayID string
	err := pool.QueryRow(ctx,
		"SELECT barangay_id::text FROM assessments WHERE id = $1", assessmentID,
	).Scan(&barangayID)
	if err != nil {
		return false
	}
	return checkBarangayAccess(ctx, barangayID)
}
