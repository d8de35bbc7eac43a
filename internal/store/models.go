package store

import "time"

// User is a candidate account. The pipeline only reads the resume
// filename; account lifecycle is owned elsewhere.
type User struct {
	ID             int64   `db:"id" json:"id"`
	Email          string  `db:"email" json:"email"`
	Name           string  `db:"name" json:"name"`
	ResumeFilename *string `db:"resume_filename" json:"resume_filename,omitempty"`
}

// Job is a posting with the ideal-profile text the gate scores against.
type Job struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	IdealProfile string    `db:"ideal_profile" json:"ideal_profile"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Application ties a user to a job, with a derived overall status.
type Application struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	JobID     int64     `db:"job_id" json:"job_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// stageRow is the storage shape of a timeline stage record.
type stageRow struct {
	ID            int64      `db:"id"`
	ApplicationID int64      `db:"application_id"`
	Name          string     `db:"name"`
	Status        string     `db:"status"`
	Date          *time.Time `db:"date"`
	Feedback      *string    `db:"feedback"`
	SortOrder     int        `db:"sort_order"`
}

// StageStatusCount is one cell of the stage/status dashboard grid.
type StageStatusCount struct {
	Stage  string `db:"name" json:"stage"`
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// ResultBreakdown summarizes final outcomes across all applications.
type ResultBreakdown struct {
	Accepted             int `json:"accepted"`
	RejectedPreselection int `json:"rejected_preselection"`
	RejectedProcess      int `json:"rejected_process"`
	Pending              int `json:"pending"`
}
