// Package timeline models the five-stage application timeline and the
// preselection gate that drives its automatic transitions.
package timeline

import "time"

// Stage names the steps of the hiring timeline, in fixed order.
type Stage string

const (
	StageApplication  Stage = "application"
	StagePreselection Stage = "preselection"
	StageInterview    Stage = "interview"
	StageTest         Stage = "test"
	StageResult       Stage = "result"
)

// Status is the state of a single stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusScheduled  Status = "scheduled"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusAccepted   Status = "accepted"
)

// Terminal reports whether the status closes a stage.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAccepted || s == StatusRejected
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusScheduled, StatusCompleted, StatusRejected, StatusAccepted:
		return true
	}
	return false
}

// StageRecord is one step of an application's timeline.
type StageRecord struct {
	Name      Stage      `json:"name"`
	Status    Status     `json:"status"`
	Date      *time.Time `json:"date"`
	Feedback  string     `json:"feedback,omitempty"`
	SortOrder int        `json:"sort_order"`
}

// Timeline is the ordered sequence of an application's stage records.
type Timeline []StageRecord

// Find returns the record for name, or nil if absent.
func (t Timeline) Find(name Stage) *StageRecord {
	for i := range t {
		if t[i].Name == name {
			return &t[i]
		}
	}
	return nil
}

// StageDefinition fixes a stage's place and starting status in a new
// timeline.
type StageDefinition struct {
	Name          Stage
	InitialStatus Status
	SortOrder     int
}

// DefaultStages returns the five-stage hiring sequence.
func DefaultStages() []StageDefinition {
	return []StageDefinition{
		{Name: StageApplication, InitialStatus: StatusCompleted, SortOrder: 1},
		{Name: StagePreselection, InitialStatus: StatusPending, SortOrder: 2},
		{Name: StageInterview, InitialStatus: StatusPending, SortOrder: 3},
		{Name: StageTest, InitialStatus: StatusPending, SortOrder: 4},
		{Name: StageResult, InitialStatus: StatusPending, SortOrder: 5},
	}
}
