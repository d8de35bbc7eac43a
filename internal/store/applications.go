package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hireflow/hireflow/internal/timeline"
)

// CreateApplication creates an application together with its timeline
// in one transaction. If the (user, job) pair already has an
// application the existing id is returned with created=false and the
// stored timeline is left untouched.
func (s *Store) CreateApplication(ctx context.Context, userID, jobID int64, status timeline.Status, tl timeline.Timeline, now time.Time) (int64, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.GetContext(ctx, &existingID,
		`SELECT id FROM applications WHERE user_id = ? AND job_id = ?`, userID, jobID)
	if err == nil {
		return existingID, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("checking existing application: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO applications (user_id, job_id, status, created_at) VALUES (?, ?, ?, ?)`,
		userID, jobID, string(status), now.UTC())
	if err != nil {
		return 0, false, fmt.Errorf("inserting application: %w", err)
	}
	appID, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}

	for _, rec := range tl {
		if err := upsertStage(ctx, tx, appID, rec); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing application: %w", err)
	}
	return appID, true, nil
}

// GetApplication returns an application by id.
func (s *Store) GetApplication(ctx context.Context, id int64) (*Application, error) {
	var a Application
	err := s.db.GetContext(ctx, &a, `SELECT * FROM applications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting application: %w", err)
	}
	return &a, nil
}

// GetTimeline returns an application's stage records in sort order.
func (s *Store) GetTimeline(ctx context.Context, applicationID int64) (timeline.Timeline, error) {
	var rows []stageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM application_stages WHERE application_id = ? ORDER BY sort_order`,
		applicationID)
	if err != nil {
		return nil, fmt.Errorf("selecting stages: %w", err)
	}
	tl := make(timeline.Timeline, 0, len(rows))
	for _, r := range rows {
		rec := timeline.StageRecord{
			Name:      timeline.Stage(r.Name),
			Status:    timeline.Status(r.Status),
			Date:      r.Date,
			SortOrder: r.SortOrder,
		}
		if r.Feedback != nil {
			rec.Feedback = *r.Feedback
		}
		tl = append(tl, rec)
	}
	return tl, nil
}

// SaveTimeline upserts an application's stage records and, when
// appStatus is non-nil, updates the overall application status, in one
// transaction.
func (s *Store) SaveTimeline(ctx context.Context, applicationID int64, tl timeline.Timeline, appStatus *timeline.Status) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range tl {
		if err := upsertStage(ctx, tx, applicationID, rec); err != nil {
			return err
		}
	}
	if appStatus != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE applications SET status = ? WHERE id = ?`,
			string(*appStatus), applicationID); err != nil {
			return fmt.Errorf("updating application status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing timeline: %w", err)
	}
	return nil
}

// DeleteApplication removes an application; its stages follow via
// foreign key cascade.
func (s *Store) DeleteApplication(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func upsertStage(ctx context.Context, tx *sqlx.Tx, applicationID int64, rec timeline.StageRecord) error {
	var feedback *string
	if rec.Feedback != "" {
		feedback = &rec.Feedback
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO application_stages (application_id, name, status, date, feedback, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(application_id, name) DO UPDATE SET
			status = excluded.status,
			date = excluded.date,
			feedback = excluded.feedback,
			sort_order = excluded.sort_order`,
		applicationID, string(rec.Name), string(rec.Status), rec.Date, feedback, rec.SortOrder)
	if err != nil {
		return fmt.Errorf("upserting stage %s: %w", rec.Name, err)
	}
	return nil
}
