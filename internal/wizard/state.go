// Package wizard holds the installer's screen state machine. It performs no
// I/O: Handle maps an event to the next state plus effects for the caller to
// execute, and the outcomes come back in as events.
package wizard

// State is one screen. The set is closed; see the cases in Machine.Handle.
type State interface {
	Name() string
	isState()
}

type (
	RegistrySetup   struct{}
	Confirmation    struct{}
	ConfigSelection struct{}
	EnvSetup        struct{}
	UpdateList      struct{}
	UpdatePulling   struct{}
	Installing      struct{}
	Success         struct{}
	// Error is terminal except for force-quit.
	Error struct{ Message string }
)

func (RegistrySetup) Name() string   { return "registry_setup" }
func (Confirmation) Name() string    { return "confirmation" }
func (ConfigSelection) Name() string { return "config_selection" }
func (EnvSetup) Name() string        { return "env_setup" }
func (UpdateList) Name() string      { return "update_list" }
func (UpdatePulling) Name() string   { return "update_pulling" }
func (Installing) Name() string      { return "installing" }
func (Success) Name() string         { return "success" }
func (Error) Name() string           { return "error" }

func (RegistrySetup) isState()   {}
func (Confirmation) isState()    {}
func (ConfigSelection) isState() {}
func (EnvSetup) isState()        {}
func (UpdateList) isState()      {}
func (UpdatePulling) isState()   {}
func (Installing) isState()      {}
func (Success) isState()         {}
func (Error) isState()           {}

// MenuOption is an entry on the confirmation screen. The constant order is
// the display order.
type MenuOption int

const (
	GenerateConfig MenuOption = iota
	GenerateEnv
	Proceed
	CheckUpdates
	UpdateToken
	Cancel
)

func (o MenuOption) String() string {
	switch o {
	case GenerateConfig:
		return "Generate config.yaml"
	case GenerateEnv:
		return "Generate .env"
	case Proceed:
		return "Proceed with Installation"
	case CheckUpdates:
		return "Check for Updates"
	case UpdateToken:
		return "Update Registry Token"
	case Cancel:
		return "Cancel"
	default:
		return "unknown"
	}
}

// Prereqs are the facts the menu depends on.
type Prereqs struct {
	Credential bool
	Config     bool
	Env        bool
}

// AvailableOptions lists the menu entries that make sense for p, in display
// order. Config comes before env; install needs both.
func AvailableOptions(p Prereqs) []MenuOption {
	var out []MenuOption
	if !p.Config {
		out = append(out, GenerateConfig)
	}
	if !p.Env {
		out = append(out, GenerateEnv)
	}
	if p.Config && p.Env {
		out = append(out, Proceed)
	}
	out = append(out, CheckUpdates)
	if p.Credential {
		out = append(out, UpdateToken)
	}
	return append(out, Cancel)
}
