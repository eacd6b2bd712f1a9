package updates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Bibi40k/nqrust-installer/internal/config"
	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/google/go-containerregistry/pkg/name"
)

const (
	notFoundNote = "Package not found in GitHub Container Registry"
	noTagsNote   = "No tags found for this image yet"
)

var (
	inspectImageFn = func(ctx context.Context, ref string) (string, error) {
		out, _, err := process.Output(ctx, process.Command{
			Name: "docker",
			Args: []string{"image", "inspect", ref, "--format", "{{.Created}}"},
		})
		return out, err
	}
	pullImageFn = func(ctx context.Context, logger *slog.Logger, ref string, sink chan<- process.Line) error {
		return process.Run(ctx, logger, process.Command{Name: "docker", Args: []string{"pull", ref}}, sink)
	}
)

type Resolver struct {
	api            *github.Client
	owner          string
	artifacts      []config.ArtifactConfig
	installer      config.InstallerConfig
	currentVersion string
	tolerance      time.Duration
	logger         *slog.Logger
}

func NewResolver(api *github.Client, cfg config.Config, currentVersion string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		api:            api,
		owner:          cfg.Registry.Owner,
		artifacts:      cfg.Artifacts,
		installer:      cfg.Installer,
		currentVersion: currentVersion,
		tolerance:      cfg.Updates.Tolerance(),
		logger:         logger,
	}
}

// Resolve builds a fresh Info per tracked artifact plus the installer entry.
// A package missing from the registry only marks its own entry; auth, server
// and transport errors abort the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, token string) ([]Info, error) {
	api := r.api.WithToken(token)
	infos := make([]Info, 0, len(r.artifacts)+1)

	for _, a := range r.artifacts {
		info, err := r.resolveArtifact(ctx, api, a)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	self, err := r.resolveInstaller(ctx, api)
	if err != nil {
		return nil, err
	}
	return append(infos, self), nil
}

func (r *Resolver) resolveArtifact(ctx context.Context, api *github.Client, a config.ArtifactConfig) (Info, error) {
	info := Info{
		Name:       a.Name,
		Image:      a.Image,
		Package:    a.Package,
		CurrentTag: imageTag(a.Image),
		tolerance:  r.tolerance,
	}

	versions, found, err := r.fetchVersions(ctx, api, a.Package)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	if !found {
		info.AppendStatus(notFoundNote)
	}

	tags, stamps := collectTags(versions)
	if found && len(tags) == 0 {
		info.AppendStatus(noTagsNote)
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	info.Tags = sorted
	info.LatestRelease = LatestRelease(tags)
	info.ApplyRemoteLatest(stamps["latest"])

	local, note := r.InspectLocal(ctx, a.Image)
	info.AppendStatus(note)
	info.ApplyLocalCreated(local)

	r.logger.Debug("artifact resolved",
		"package", a.Package,
		"tags", len(tags),
		"latest_release", info.LatestRelease,
		"has_update", info.HasUpdate(),
	)
	return info, nil
}

// fetchVersions tries the org-scoped listing, then the user-scoped one.
func (r *Resolver) fetchVersions(ctx context.Context, api *github.Client, pkg string) ([]github.PackageVersion, bool, error) {
	for _, scope := range []github.Scope{github.ScopeOrg, github.ScopeUser} {
		versions, err := api.PackageVersions(ctx, scope, r.owner, pkg)
		switch status := github.StatusCode(err); {
		case err == nil:
			return versions, true, nil
		case status == http.StatusNotFound:
			continue
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, false, fmt.Errorf("registry authentication failed for package %s: %w", pkg, err)
		case status >= 500:
			return nil, false, fmt.Errorf("registry server error for package %s: %w", pkg, err)
		default:
			return nil, false, fmt.Errorf("list versions of package %s: %w", pkg, err)
		}
	}
	return nil, false, nil
}

// collectTags keeps the first-seen order and the first timestamp per tag.
func collectTags(versions []github.PackageVersion) ([]string, map[string]*time.Time) {
	var tags []string
	stamps := map[string]*time.Time{}
	for _, v := range versions {
		ts := v.Timestamp()
		for _, tag := range v.Tags() {
			if _, seen := stamps[tag]; seen {
				continue
			}
			tags = append(tags, tag)
			stamps[tag] = ts
		}
	}
	return tags, stamps
}

// InspectLocal returns the local image creation time. A missing image is not
// a failure; anything else is reported as a status note.
func (r *Resolver) InspectLocal(ctx context.Context, ref string) (*time.Time, string) {
	out, err := inspectImageFn(ctx, ref)
	if err != nil {
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			return nil, ""
		}
		return nil, fmt.Sprintf("%s: %v", inspectFailurePrefix, err)
	}
	raw := strings.TrimSpace(out)
	if raw == "" {
		return nil, ""
	}
	created, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Sprintf("%s: unexpected timestamp %q", inspectFailurePrefix, raw)
	}
	return &created, ""
}

// Pull runs docker pull for ref, streaming its output to sink.
func (r *Resolver) Pull(ctx context.Context, ref string, sink chan<- process.Line) error {
	return pullImageFn(ctx, r.logger, ref, sink)
}

func (r *Resolver) resolveInstaller(ctx context.Context, api *github.Client) (Info, error) {
	info := Info{
		Name:       "Installer",
		Package:    r.installer.Repo,
		CurrentTag: r.currentVersion,
		Installer:  &InstallerRelease{},
		tolerance:  r.tolerance,
	}

	rel, err := api.LatestRelease(ctx, r.installer.Owner, r.installer.Repo)
	if github.StatusCode(err) == http.StatusNotFound {
		info.AppendStatus("No installer release published")
		return info, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("installer release: %w", err)
	}

	info.Installer = installerRelease(rel, r.installer)
	info.Tags = []string{rel.TagName}
	info.LatestRelease = rel.TagName
	info.RemoteLatestAt = rel.PublishedAt
	info.hasUpdate = IsNewer(rel.TagName, r.currentVersion)
	if info.Installer.Asset == nil {
		info.AppendStatus(fmt.Sprintf("Release %s has no *%s asset", rel.TagName, r.installer.AssetSuffix))
	}
	return info, nil
}

func installerRelease(rel github.Release, cfg config.InstallerConfig) *InstallerRelease {
	out := &InstallerRelease{
		Tag:     rel.TagName,
		Version: strings.TrimPrefix(rel.TagName, "v"),
	}
	for i := range rel.Assets {
		asset := rel.Assets[i]
		if out.Asset == nil && strings.HasSuffix(asset.Name, cfg.AssetSuffix) {
			out.Asset = &asset
			continue
		}
		if out.Checksum == nil && isChecksumAsset(asset.Name, cfg.ChecksumAssets) {
			out.Checksum = &asset
		}
	}
	return out
}

func isChecksumAsset(assetName string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(assetName, n) {
			return true
		}
	}
	return false
}

func imageTag(image string) string {
	ref, err := name.ParseReference(image)
	if err != nil {
		return ""
	}
	if tag, ok := ref.(name.Tag); ok {
		return tag.TagStr()
	}
	return ""
}
