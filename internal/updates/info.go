package updates

import (
	"strings"
	"time"

	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/pkg/model"
)

const inspectFailurePrefix = "Failed to inspect local image"

// InstallerRelease is the published release backing the installer entry.
type InstallerRelease struct {
	Tag      string
	Version  string
	Asset    *github.Asset
	Checksum *github.Asset
}

// Info describes one tracked artifact. The update flag is derived from the
// timestamps (or, for the installer, from versions) and only changes through
// the Apply methods.
type Info struct {
	Name           string
	Image          string
	Package        string
	CurrentTag     string
	Tags           []string
	LatestRelease  string
	RemoteLatestAt *time.Time
	LocalCreatedAt *time.Time
	Status         string
	Installer      *InstallerRelease

	tolerance time.Duration
	hasUpdate bool
}

func (i Info) HasUpdate() bool { return i.hasUpdate }

func (i Info) IsInstaller() bool { return i.Installer != nil }

// TimestampUpdate reports whether the remote image is newer than the local
// one by more than tolerance. A missing remote timestamp never is.
func TimestampUpdate(remote, local *time.Time, tolerance time.Duration) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	return remote.Sub(*local) > tolerance
}

func (i *Info) ApplyRemoteLatest(t *time.Time) {
	i.RemoteLatestAt = t
	i.recompute()
}

func (i *Info) ApplyLocalCreated(t *time.Time) {
	i.LocalCreatedAt = t
	i.recompute()
}

func (i *Info) recompute() {
	if i.Installer != nil {
		return
	}
	i.hasUpdate = TimestampUpdate(i.RemoteLatestAt, i.LocalCreatedAt, i.tolerance)
}

// AppendStatus adds a note; notes are joined with "; ".
func (i *Info) AppendStatus(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if i.Status == "" {
		i.Status = note
		return
	}
	i.Status += "; " + note
}

// ClearInspectFailure drops a stale local-inspection note, typically after a
// successful pull.
func (i *Info) ClearInspectFailure() {
	if i.Status == "" {
		return
	}
	parts := strings.Split(i.Status, "; ")
	kept := parts[:0]
	for _, p := range parts {
		if !strings.HasPrefix(p, inspectFailurePrefix) {
			kept = append(kept, p)
		}
	}
	i.Status = strings.Join(kept, "; ")
}

// Entry converts i for JSON output.
func (i Info) Entry() model.UpdateEntry {
	return model.UpdateEntry{
		Name:           i.Name,
		Image:          i.Image,
		Package:        i.Package,
		CurrentTag:     i.CurrentTag,
		Tags:           i.Tags,
		LatestRelease:  i.LatestRelease,
		RemoteLatestAt: i.RemoteLatestAt,
		LocalCreatedAt: i.LocalCreatedAt,
		HasUpdate:      i.hasUpdate,
		Status:         i.Status,
		Installer:      i.IsInstaller(),
	}
}
