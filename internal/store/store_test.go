package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireflow/hireflow/internal/timeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUserAndJob(t *testing.T, s *Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	resume := "cv.pdf"
	userID, err := s.CreateUser(ctx, User{Email: "ana@example.com", Name: "Ana", ResumeFilename: &resume})
	require.NoError(t, err)
	jobID, err := s.CreateJob(ctx, Job{Title: "Backend Engineer", IdealProfile: "golang, postgres, five years"})
	require.NoError(t, err)
	return userID, jobID
}

func TestUsersAndJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, jobID := seedUserAndJob(t, s)

	user, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	require.NotNil(t, user.ResumeFilename)
	assert.Equal(t, "cv.pdf", *user.ResumeFilename)

	byEmail, err := s.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, userID, byEmail.ID)

	job, err := s.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", job.Title)

	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetJob(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetResumeFilename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, err := s.CreateUser(ctx, User{Email: "b@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.SetResumeFilename(ctx, userID, "new.pdf"))
	user, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user.ResumeFilename)
	assert.Equal(t, "new.pdf", *user.ResumeFilename)

	assert.ErrorIs(t, s.SetResumeFilename(ctx, 9999, "x.pdf"), ErrNotFound)
}

func TestCreateApplication_WithTimeline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, jobID := seedUserAndJob(t, s)

	gate := timeline.NewGate(timeline.DefaultGateConfig())
	now := time.Now().UTC()
	tl, appStatus := gate.InitialTimeline(gate.Evaluate(nil), now)

	appID, created, err := s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
	require.NoError(t, err)
	assert.True(t, created)

	app, err := s.GetApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, string(timeline.StatusInProgress), app.Status)

	stored, err := s.GetTimeline(ctx, appID)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	assert.Equal(t, timeline.StageApplication, stored[0].Name)
	assert.Equal(t, timeline.StatusCompleted, stored[0].Status)
	assert.Equal(t, timeline.StageResult, stored[4].Name)
	assert.Equal(t, 5, stored[4].SortOrder)
}

func TestCreateApplication_DuplicateReturnsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, jobID := seedUserAndJob(t, s)

	gate := timeline.NewGate(timeline.DefaultGateConfig())
	now := time.Now().UTC()
	tl, appStatus := gate.InitialTimeline(gate.Evaluate(nil), now)

	first, created, err := s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
}

func TestSaveTimeline_UpsertsAndUpdatesStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, jobID := seedUserAndJob(t, s)

	gate := timeline.NewGate(timeline.DefaultGateConfig())
	now := time.Now().UTC()
	tl, appStatus := gate.InitialTimeline(gate.Evaluate(nil), now)
	appID, _, err := s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
	require.NoError(t, err)

	updated, newStatus, err := gate.ApplyUpdate(tl, timeline.StageUpdate{
		Name:   timeline.StagePreselection,
		Status: timeline.StatusRejected,
	}, now)
	require.NoError(t, err)
	require.NotNil(t, newStatus)
	require.NoError(t, s.SaveTimeline(ctx, appID, updated, newStatus))

	app, err := s.GetApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, string(timeline.StatusRejected), app.Status)

	stored, err := s.GetTimeline(ctx, appID)
	require.NoError(t, err)
	pre := stored.Find(timeline.StagePreselection)
	require.NotNil(t, pre)
	assert.Equal(t, timeline.StatusRejected, pre.Status)
	result := stored.Find(timeline.StageResult)
	require.NotNil(t, result)
	assert.Equal(t, timeline.StatusRejected, result.Status)
	assert.Equal(t, timeline.DefaultRejectionFeedback, result.Feedback)
	assert.NotNil(t, result.Date)
}

func TestDeleteApplication_CascadesStages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, jobID := seedUserAndJob(t, s)

	gate := timeline.NewGate(timeline.DefaultGateConfig())
	now := time.Now().UTC()
	tl, appStatus := gate.InitialTimeline(gate.Evaluate(nil), now)
	appID, _, err := s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
	require.NoError(t, err)

	require.NoError(t, s.DeleteApplication(ctx, appID))
	_, err = s.GetApplication(ctx, appID)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := s.GetTimeline(ctx, appID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.ErrorIs(t, s.DeleteApplication(ctx, appID), ErrNotFound)
}

func TestStageMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gate := timeline.NewGate(timeline.DefaultGateConfig())
	now := time.Now().UTC()

	// Three applications: one passing gate, one auto-rejected, one unscored.
	resumes := []string{"a.pdf", "b.pdf", "c.pdf"}
	scores := []*float64{scorePtr(0.9), scorePtr(0.3), nil}
	jobID, err := s.CreateJob(ctx, Job{Title: "Role", IdealProfile: "profile"})
	require.NoError(t, err)
	for i, score := range scores {
		userID, err := s.CreateUser(ctx, User{Email: resumes[i], ResumeFilename: &resumes[i]})
		require.NoError(t, err)
		tl, appStatus := gate.InitialTimeline(gate.Evaluate(score), now)
		_, _, err = s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
		require.NoError(t, err)
	}

	counts, err := s.StageStatusCounts(ctx)
	require.NoError(t, err)
	byKey := map[string]int{}
	for _, c := range counts {
		byKey[c.Stage+"/"+c.Status] = c.Count
	}
	assert.Equal(t, 3, byKey["application/completed"])
	assert.Equal(t, 1, byKey["preselection/completed"])
	assert.Equal(t, 1, byKey["preselection/rejected"])
	assert.Equal(t, 1, byKey["preselection/pending"])

	breakdown, err := s.ResultStageBreakdown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, breakdown.Accepted)
	assert.Equal(t, 1, breakdown.RejectedPreselection)
	assert.Equal(t, 0, breakdown.RejectedProcess)
	assert.Equal(t, 2, breakdown.Pending)
}

func TestResultStageBreakdown_CompletedCountsAsAccepted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, jobID := seedUserAndJob(t, s)

	gate := timeline.NewGate(timeline.DefaultGateConfig())
	now := time.Now().UTC()
	tl, appStatus := gate.InitialTimeline(gate.Evaluate(scorePtr(0.9)), now)
	appID, _, err := s.CreateApplication(ctx, userID, jobID, appStatus, tl, now)
	require.NoError(t, err)

	// Admins close a successful process by marking result completed
	// rather than accepted; both count as an accept.
	updated, newStatus, err := gate.ApplyUpdate(tl, timeline.StageUpdate{
		Name:   timeline.StageResult,
		Status: timeline.StatusCompleted,
	}, now)
	require.NoError(t, err)
	require.NoError(t, s.SaveTimeline(ctx, appID, updated, newStatus))

	breakdown, err := s.ResultStageBreakdown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, breakdown.Accepted)
	assert.Equal(t, 0, breakdown.Pending)
}

func scorePtr(s float64) *float64 { return &s }
