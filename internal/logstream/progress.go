package logstream

import (
	"fmt"
	"math"
	"strings"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuild
	PhaseDeploy
	PhasePull
)

// Tracker holds the counters behind the install progress estimate. It is
// owned by a single controller; nothing in it is safe for concurrent use.
type Tracker struct {
	Percent   float64
	Phase     Phase
	Current   string
	Completed int
	Total     int

	buildShare float64
	stepFloor  float64
}

// NewTracker reserves buildShare percent for the build phase; build steps
// start counting from stepFloor.
func NewTracker(totalServices int, buildShare, stepFloor float64) *Tracker {
	return &Tracker{Total: totalServices, buildShare: buildShare, stepFloor: stepFloor}
}

func (t *Tracker) Reset() {
	t.Percent = 0
	t.Phase = PhaseIdle
	t.Current = ""
	t.Completed = 0
}

// Begin switches phase. Entering deploy lifts progress to the build share.
func (t *Tracker) Begin(p Phase) {
	t.Phase = p
	if p == PhaseDeploy {
		t.raise(t.buildShare)
	}
}

func (t *Tracker) Finish() {
	t.Percent = 100
}

// Apply folds e into the counters and returns the transcript line for it.
// An empty result means the line is not shown.
func (t *Tracker) Apply(e Entry) string {
	if t.Phase == PhaseBuild && e.Steps > 0 {
		ratio := math.Min(float64(e.Step)/float64(e.Steps), 1)
		t.raise(math.Min(t.stepFloor+ratio*(t.buildShare-t.stepFloor), t.buildShare))
	}

	switch e.Kind {
	case KindBlank:
		return ""
	case KindPullStart:
		if e.Service == "" {
			return "↓ " + strings.TrimSpace(e.Raw)
		}
		t.Current = e.Service
		return fmt.Sprintf("↓ Pulling image for %s...", e.Service)
	case KindPulled:
		return "✓ Image pulled"
	case KindCreating:
		if e.Service == "" {
			return "+ " + strings.TrimSpace(e.Raw)
		}
		t.Current = e.Service
		return fmt.Sprintf("+ Creating container %s...", e.Service)
	case KindCreated:
		return "✓ Container created"
	case KindStarting:
		if e.Service == "" {
			return "▶ " + strings.TrimSpace(e.Raw)
		}
		t.Current = e.Service
		return fmt.Sprintf("▶ Starting service %s...", e.Service)
	case KindStarted:
		if t.Completed < t.Total {
			t.Completed++
		}
		if t.Total > 0 {
			t.raise(t.buildShare + float64(t.Completed)/float64(t.Total)*(100-t.buildShare))
		}
		return fmt.Sprintf("✓ Service started (%d/%d)", t.Completed, t.Total)
	case KindRunning:
		return "● Service is running"
	case KindError:
		return "✗ " + e.Raw
	default:
		return "· " + e.Raw
	}
}

// raise never lets progress move backwards.
func (t *Tracker) raise(pct float64) {
	if pct > 100 {
		pct = 100
	}
	if pct > t.Percent {
		t.Percent = pct
	}
}
