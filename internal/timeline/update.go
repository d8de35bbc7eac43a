package timeline

import (
	"fmt"
	"time"
)

// StageUpdate is a manual (admin) edit to one stage.
type StageUpdate struct {
	Name     Stage
	Status   Status
	Date     *time.Time
	Feedback *string
}

// ApplyUpdate applies a manual stage edit to the timeline and returns
// the updated timeline plus the new overall application status, or nil
// when the application status is unaffected.
//
// Side effects: setting result to accepted or rejected mirrors onto
// the application status; setting preselection to rejected cascades a
// rejection onto result (backfilling its date and feedback) and
// rejects the application. The cascade re-fires on every preselection
// rejection, but nothing blocks a later manual result edit.
func (g *Gate) ApplyUpdate(tl Timeline, upd StageUpdate, now time.Time) (Timeline, *Status, error) {
	if !upd.Status.Valid() {
		return tl, nil, fmt.Errorf("unknown stage status %q", upd.Status)
	}
	order, ok := g.sortOrder(upd.Name)
	if !ok {
		return tl, nil, fmt.Errorf("unknown stage %q", upd.Name)
	}

	stage := tl.Find(upd.Name)
	if stage == nil {
		// Stages missing from storage are materialized on first touch.
		tl = append(tl, StageRecord{Name: upd.Name, Status: StatusPending, SortOrder: order})
		stage = &tl[len(tl)-1]
	}

	stage.Status = upd.Status
	if upd.Date != nil {
		stage.Date = upd.Date
	}
	if upd.Feedback != nil {
		stage.Feedback = *upd.Feedback
	}
	if upd.Status.Terminal() && upd.Date == nil && stage.Date == nil {
		stage.Date = timePtr(now)
	}

	var appStatus *Status

	if upd.Name == StageResult && (upd.Status == StatusAccepted || upd.Status == StatusRejected) {
		s := upd.Status
		appStatus = &s
	}

	if upd.Name == StagePreselection && upd.Status == StatusRejected {
		result := tl.Find(StageResult)
		if result == nil {
			resultOrder, _ := g.sortOrder(StageResult)
			tl = append(tl, StageRecord{Name: StageResult, Status: StatusPending, SortOrder: resultOrder})
			result = &tl[len(tl)-1]
			stage = tl.Find(upd.Name) // re-resolve after append
		}
		result.Status = StatusRejected
		if result.Date == nil {
			if stage.Date != nil {
				result.Date = stage.Date
			} else {
				result.Date = timePtr(now)
			}
		}
		if result.Feedback == "" {
			if upd.Feedback != nil && *upd.Feedback != "" {
				result.Feedback = *upd.Feedback
			} else {
				result.Feedback = g.cfg.RejectionFeedback
			}
		}
		s := StatusRejected
		appStatus = &s
	}

	return tl, appStatus, nil
}

// sortOrder returns the configured sort order for a stage name.
func (g *Gate) sortOrder(name Stage) (int, bool) {
	for _, def := range g.cfg.Stages {
		if def.Name == name {
			return def.SortOrder, true
		}
	}
	return 0, false
}
