package timeline

import "time"

// DefaultThresholdPercent is the preselection pass mark.
const DefaultThresholdPercent = 80.0

// DefaultRejectionFeedback is attached to stages rejected by the gate.
const DefaultRejectionFeedback = "Your profile does not meet the minimum match required for this position."

// GateConfig parameterizes the preselection gate.
type GateConfig struct {
	// ThresholdPercent is the minimum passing score; a score exactly at
	// the threshold passes.
	ThresholdPercent float64
	// RejectionFeedback is the message attached to auto-rejected stages.
	RejectionFeedback string
	// Stages defines the timeline shape for new applications.
	Stages []StageDefinition
}

// DefaultGateConfig returns the standard five-stage, 80% gate.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ThresholdPercent:  DefaultThresholdPercent,
		RejectionFeedback: DefaultRejectionFeedback,
		Stages:            DefaultStages(),
	}
}

// Outcome is the gate's decision for one (job, resume) pair.
type Outcome struct {
	// ScorePercent is the similarity score scaled to [0, 100], or nil
	// when the score could not be computed.
	ScorePercent *float64
	// Passed is false both for a failing score and for a nil score;
	// check ScorePercent to tell them apart.
	Passed        bool
	ThresholdUsed float64
}

// Gate converts similarity scores into timeline decisions.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a Gate. Zero-value config fields fall back to the
// defaults.
func NewGate(cfg GateConfig) *Gate {
	if cfg.ThresholdPercent == 0 {
		cfg.ThresholdPercent = DefaultThresholdPercent
	}
	if cfg.RejectionFeedback == "" {
		cfg.RejectionFeedback = DefaultRejectionFeedback
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = DefaultStages()
	}
	return &Gate{cfg: cfg}
}

// Config returns the gate's configuration.
func (g *Gate) Config() GateConfig { return g.cfg }

// Evaluate converts a similarity fraction (or nil for uncomputable)
// into a preselection outcome. "Cannot score" and "scored zero" are
// different outcomes and are never conflated.
func (g *Gate) Evaluate(score *float64) Outcome {
	if score == nil {
		return Outcome{ThresholdUsed: g.cfg.ThresholdPercent}
	}
	percent := *score * 100.0
	return Outcome{
		ScorePercent:  &percent,
		Passed:        percent >= g.cfg.ThresholdPercent,
		ThresholdUsed: g.cfg.ThresholdPercent,
	}
}

// InitialTimeline builds the timeline for a newly created application
// given the gate's outcome. The application stage is completed
// immediately. A nil score leaves preselection and result pending for
// manual progression; a failing score rejects both and the returned
// application status; a passing score completes preselection only.
func (g *Gate) InitialTimeline(outcome Outcome, now time.Time) (Timeline, Status) {
	appStatus := StatusInProgress
	tl := make(Timeline, 0, len(g.cfg.Stages))

	for _, def := range g.cfg.Stages {
		rec := StageRecord{
			Name:      def.Name,
			Status:    def.InitialStatus,
			SortOrder: def.SortOrder,
		}
		switch def.Name {
		case StageApplication:
			rec.Status = StatusCompleted
			rec.Date = timePtr(now)
		case StagePreselection:
			if outcome.ScorePercent != nil {
				rec.Date = timePtr(now)
				if outcome.Passed {
					rec.Status = StatusCompleted
				} else {
					rec.Status = StatusRejected
					rec.Feedback = g.cfg.RejectionFeedback
				}
			}
		case StageResult:
			if outcome.ScorePercent != nil && !outcome.Passed {
				rec.Status = StatusRejected
				rec.Date = timePtr(now)
				rec.Feedback = g.cfg.RejectionFeedback
				appStatus = StatusRejected
			}
		}
		tl = append(tl, rec)
	}

	return tl, appStatus
}

func timePtr(t time.Time) *time.Time { return &t }
