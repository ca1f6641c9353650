// Package cron runs periodic background jobs.
package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/compliance"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/metrics"
	"github.com/generyand/sinag-sub010/internal/workflow"
)

// candidate is an editable assessment that has a submission deadline.
type candidate struct {
	ID         string
	Status     workflow.Status
	Deadline   time.Time
	GraceDays  int
	BarangayID string
}

// dueForLock returns the ids of candidates whose deadline plus grace period
// has passed at now.
func dueForLock(cs []candidate, now time.Time) []string {
	var ids []string
	for _, c := range cs {
		if !workflow.Lockable(c.Status) {
			continue
		}
		if compliance.IsPastDeadline(c.Deadline, c.GraceDays, now) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// StartSweeper launches a goroutine that locks overdue assessments once
// immediately and then every interval until ctx is cancelled.
func StartSweeper(ctx context.Context, db database.Service, interval time.Duration) {
	go func() {
		runSweep(ctx, db, time.Now())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runSweep(ctx, db, now)
			}
		}
	}()

	zap.L().Info("deadline sweeper started", zap.Duration("interval", interval))
}

// runSweep locks DRAFT and REWORK assessments that missed their deadline.
func runSweep(parent context.Context, db database.Service, now time.Time) {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	pool := db.GetPool()
	log := zap.L().With(zap.String("job", "deadline_sweeper"))

	rows, err := pool.Query(ctx, `
		SELECT id, status, submission_deadline, grace_period_days, barangay_id::text
		FROM assessments
		WHERE NOT is_locked
		  AND submission_deadline IS NOT NULL
		  AND status IN ('DRAFT', 'REWORK')
	`)
	if err != nil {
		log.Error("failed to query assessments", zap.Error(err))
		return
	}

	var cs []candidate
	for rows.Next() {
		var c candidate
		var status string
		if err := rows.Scan(&c.ID, &status, &c.Deadline, &c.GraceDays, &c.BarangayID); err != nil {
			log.Warn("failed to scan assessment", zap.Error(err))
			continue
		}
		c.Status = workflow.Status(status)
		cs = append(cs, c)
	}
	rows.Close()

	ids := dueForLock(cs, now)
	if len(ids) == 0 {
		log.Debug("nothing to lock", zap.Int("checked", len(cs)))
		return
	}

	// The status guard repeats the query's so a submission racing the sweep
	// is never locked.
	locked, err := pool.Query(ctx, `
		UPDATE assessments SET is_locked = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND NOT is_locked AND status IN ('DRAFT', 'REWORK')
		RETURNING id
	`, ids)
	if err != nil {
		log.Error("failed to lock assessments", zap.Error(err))
		return
	}
	var lockedIDs []string
	for locked.Next() {
		var id string
		if locked.Scan(&id) == nil {
			lockedIDs = append(lockedIDs, id)
		}
	}
	locked.Close()

	for _, id := range lockedIDs {
		if _, err := pool.Exec(ctx, `
			INSERT INTO activity_log (action, entity_type, entity_id, details)
			VALUES ('locked', 'assessment', $1, $2)
		`, id, []byte(`{"reason":"submission deadline passed"}`)); err != nil {
			log.Warn("failed to log lock", zap.String("assessment_id", id), zap.Error(err))
		}
	}

	metrics.AssessmentsLocked(len(lockedIDs))
	log.Info("locked overdue assessments", zap.Int("count", len(lockedIDs)), zap.Int("checked", len(cs)))
}
