package model

import "time"

type StepStatus string

const (
	StepStatusPlanned    StepStatus = "planned"
	StepStatusSuccess    StepStatus = "success"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
	StepStatusWarning    StepStatus = "warning"
	StepStatusInProgress StepStatus = "in_progress"
)

type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message,omitempty"`
}

// InstallResult is the machine-readable outcome of `install --json`.
type InstallResult struct {
	Status      string       `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     time.Time    `json:"ended_at"`
	ProjectRoot string       `json:"project_root"`
	Services    []string     `json:"services"`
	DryRun      bool         `json:"dry_run"`
	Steps       []StepResult `json:"steps"`
	Error       string       `json:"error,omitempty"`
}

type UpdateEntry struct {
	Name           string     `json:"name"`
	Image          string     `json:"image,omitempty"`
	Package        string     `json:"package"`
	CurrentTag     string     `json:"current_tag"`
	Tags           []string   `json:"tags"`
	LatestRelease  string     `json:"latest_release,omitempty"`
	RemoteLatestAt *time.Time `json:"remote_latest_at,omitempty"`
	LocalCreatedAt *time.Time `json:"local_created_at,omitempty"`
	HasUpdate      bool       `json:"has_update"`
	Status         string     `json:"status,omitempty"`
	Installer      bool       `json:"installer"`
}

type UpdateReport struct {
	CheckedAt time.Time     `json:"checked_at"`
	Entries   []UpdateEntry `json:"entries"`
}
