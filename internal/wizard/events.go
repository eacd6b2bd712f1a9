package wizard

import (
	"time"

	"github.com/Bibi40k/nqrust-installer/internal/logstream"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
)

// Event is an input to Machine.Handle: a keystroke, a tick or the outcome of
// an effect.
type Event interface{ isEvent() }

type KeyType int

const (
	KeyRune KeyType = iota
	KeyUp
	KeyDown
	KeyTab
	KeyEnter
	KeyEsc
	KeyBackspace
	KeyCtrlS
	KeyCtrlC
)

type Key struct {
	Type KeyType
	Rune rune
}

// Tick is the poll boundary where a pending force-quit is honoured.
type Tick struct{}

type LoginFinished struct {
	Username string
	Warning  string
	Err      error
}

type ConfigWritten struct {
	Provider string
	Err      error
}

type EnvWritten struct{ Err error }

// PhaseStarted marks the start of a build or deploy step.
type PhaseStarted struct {
	Phase logstream.Phase
	Label string
}

// OutputLine is one raw line from the running external process.
type OutputLine struct{ Text string }

type DownloadProgress struct {
	Message string
	// Percent is -1 when the size is unknown.
	Percent float64
}

type InstallFinished struct {
	Warnings []string
	Err      error
}

type UpdatesFetched struct {
	Infos []updates.Info
	Err   error
}

type PullFinished struct {
	Index        int
	LocalCreated *time.Time
	Note         string
	Err          error
}

type SelfUpdateFinished struct {
	Message string
	Warning string
	Err     error
}

func (Key) isEvent()                {}
func (Tick) isEvent()               {}
func (LoginFinished) isEvent()      {}
func (ConfigWritten) isEvent()      {}
func (EnvWritten) isEvent()         {}
func (PhaseStarted) isEvent()       {}
func (OutputLine) isEvent()         {}
func (DownloadProgress) isEvent()   {}
func (InstallFinished) isEvent()    {}
func (UpdatesFetched) isEvent()     {}
func (PullFinished) isEvent()       {}
func (SelfUpdateFinished) isEvent() {}

// Effect is a request for the caller to do I/O and report back with the
// matching event.
type Effect interface{ isEffect() }

type (
	Login        struct{ Token string }
	WriteConfig  struct{ Provider string }
	WriteEnv     struct{ Provider, APIKey, OpenAIKey string }
	RunInstall   struct{}
	FetchUpdates struct{ Token string }
	PullImage    struct {
		Index int
		Image string
	}
	SelfUpdate struct{ Release updates.InstallerRelease }
	Quit       struct{}
)

func (Login) isEffect()        {}
func (WriteConfig) isEffect()  {}
func (WriteEnv) isEffect()     {}
func (RunInstall) isEffect()   {}
func (FetchUpdates) isEffect() {}
func (PullImage) isEffect()    {}
func (SelfUpdate) isEffect()   {}
func (Quit) isEffect()         {}
