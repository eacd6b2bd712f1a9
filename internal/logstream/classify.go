package logstream

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the lifecycle event a compose/docker output line maps to.
type Kind int

const (
	KindBlank Kind = iota
	KindPullStart
	KindPulled
	KindCreating
	KindCreated
	KindStarting
	KindStarted
	KindRunning
	KindError
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindPullStart:
		return "pull_start"
	case KindPulled:
		return "pulled"
	case KindCreating:
		return "creating"
	case KindCreated:
		return "created"
	case KindStarting:
		return "starting"
	case KindStarted:
		return "started"
	case KindRunning:
		return "running"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

// Entry is one classified output line.
type Entry struct {
	Kind    Kind
	Raw     string
	Service string
	// Step and Steps come from a "Step X/Y" build marker; both zero when absent.
	Step  int
	Steps int
}

// Order matters: the first rule whose needle occurs in the lowercased line wins.
var rules = []struct {
	kind    Kind
	needles []string
}{
	{kind: KindPullStart, needles: []string{"pulling"}},
	{kind: KindPulled, needles: []string{"pulled"}},
	{kind: KindCreating, needles: []string{"creating"}},
	{kind: KindCreated, needles: []string{"created"}},
	{kind: KindStarting, needles: []string{"starting"}},
	{kind: KindStarted, needles: []string{"started"}},
	{kind: KindRunning, needles: []string{"running"}},
	{kind: KindError, needles: []string{"error", "failed"}},
}

var buildStepRE = regexp.MustCompile(`Step (\d+)/(\d+)`)

// Interpreter classifies raw output lines against a fixed service list.
type Interpreter struct {
	services []string
}

func NewInterpreter(services []string) Interpreter {
	lowered := make([]string, 0, len(services))
	for _, s := range services {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			lowered = append(lowered, s)
		}
	}
	return Interpreter{services: lowered}
}

func (in Interpreter) Classify(raw string) Entry {
	e := Entry{Kind: KindBlank, Raw: strings.TrimRight(raw, "\r\n")}
	if strings.TrimSpace(e.Raw) == "" {
		return e
	}

	e.Step, e.Steps = parseBuildStep(e.Raw)

	lower := strings.ToLower(e.Raw)
	e.Kind = KindInfo
	for _, r := range rules {
		if containsAny(lower, r.needles) {
			e.Kind = r.kind
			break
		}
	}
	switch e.Kind {
	case KindPullStart, KindCreating, KindStarting:
		e.Service = in.serviceIn(lower)
	}
	return e
}

func (in Interpreter) serviceIn(lower string) string {
	for _, s := range in.services {
		if strings.Contains(lower, s) {
			return s
		}
	}
	return ""
}

func parseBuildStep(line string) (int, int) {
	m := buildStepRE.FindStringSubmatch(line)
	if m == nil {
		return 0, 0
	}
	x, errX := strconv.Atoi(m[1])
	y, errY := strconv.Atoi(m[2])
	if errX != nil || errY != nil || y <= 0 || x < 0 {
		return 0, 0
	}
	return x, y
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
