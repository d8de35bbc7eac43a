package store

import (
	"context"
	"fmt"
)

// StageStatusCounts returns the number of stage records per (stage,
// status) pair, for dashboard consumption.
func (s *Store) StageStatusCounts(ctx context.Context) ([]StageStatusCount, error) {
	var counts []StageStatusCount
	err := s.db.SelectContext(ctx, &counts,
		`SELECT name, status, COUNT(*) AS count
		 FROM application_stages
		 GROUP BY name, status
		 ORDER BY name, status`)
	if err != nil {
		return nil, fmt.Errorf("counting stage statuses: %w", err)
	}
	return counts, nil
}

// ResultStageBreakdown summarizes final outcomes. A result stage
// closed as completed counts as accepted alongside an explicit accept.
// Rejections are split between preselection failures and rejections
// later in the process: every preselection rejection cascades to
// result, so the process share is the remainder.
func (s *Store) ResultStageBreakdown(ctx context.Context) (*ResultBreakdown, error) {
	var result struct {
		Total    int `db:"total"`
		Accepted int `db:"accepted"`
		Rejected int `db:"rejected"`
	}
	err := s.db.GetContext(ctx, &result,
		`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN ('completed', 'accepted') THEN 1 ELSE 0 END), 0) AS accepted,
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected
		 FROM application_stages WHERE name = 'result'`)
	if err != nil {
		return nil, fmt.Errorf("aggregating result stages: %w", err)
	}

	var rejectedPreselection int
	err = s.db.GetContext(ctx, &rejectedPreselection,
		`SELECT COUNT(*) FROM application_stages
		 WHERE name = 'preselection' AND status = 'rejected'`)
	if err != nil {
		return nil, fmt.Errorf("counting preselection rejections: %w", err)
	}

	b := &ResultBreakdown{
		Accepted:             result.Accepted,
		RejectedPreselection: rejectedPreselection,
		RejectedProcess:      result.Rejected - rejectedPreselection,
		Pending:              result.Total - result.Accepted - result.Rejected,
	}
	if b.RejectedProcess < 0 {
		b.RejectedProcess = 0
	}
	if b.Pending < 0 {
		b.Pending = 0
	}
	return b, nil
}
