package updates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Bibi40k/nqrust-installer/internal/config"
	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func stubInspect(t *testing.T, fn func(ctx context.Context, ref string) (string, error)) {
	t.Helper()
	prev := inspectImageFn
	inspectImageFn = fn
	t.Cleanup(func() { inspectImageFn = prev })
}

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.Registry.APIBaseURL = baseURL
	cfg.Registry.Owner = "NexusQuantum"
	cfg.Artifacts = []config.ArtifactConfig{
		{Name: "Analytics UI", Image: "ghcr.io/nexusquantum/analytics-ui:latest", Package: "analytics-ui"},
	}
	cfg.Installer.Owner = "NexusQuantum"
	cfg.Installer.Repo = "installer-NQRust-Analytics"
	return cfg
}

func newResolver(t *testing.T, h http.Handler, version string) *Resolver {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := testConfig(srv.URL)
	api := github.NewClient(github.Options{BaseURL: srv.URL})
	return NewResolver(api, cfg, version, slog.Default())
}

func TestLatestReleaseUsesSemverNotLexical(t *testing.T) {
	assert.Equal(t, "1.10.0", LatestRelease([]string{"1.2.0", "1.10.0", "1.9.9"}))
	assert.Equal(t, "1.10.0", LatestRelease([]string{"1.9.9", "1.10.0", "1.2.0"}))
	assert.Equal(t, "v2.0.0", LatestRelease([]string{"latest", "v2.0.0", "2.0.0-rc.1", "sha-abc"}))
	assert.Equal(t, "1.0.0", LatestRelease([]string{"1.0.0-beta", "1.0.0", "1.0.0-alpha"}))
	assert.Equal(t, "", LatestRelease([]string{"latest", "main", "1.2"}))
	assert.Equal(t, "", LatestRelease(nil))
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("v1.3.0", "1.2.9"))
	assert.False(t, IsNewer("v1.2.9", "1.2.9"))
	assert.False(t, IsNewer("1.2.0", "v1.10.0"))
	assert.True(t, IsNewer("0.0.1", "dev"))
	assert.False(t, IsNewer("nightly", "1.0.0"))
}

func TestTimestampUpdate(t *testing.T) {
	local := ts("2024-05-01T10:00:00Z")
	tol := 5 * time.Second

	assert.True(t, TimestampUpdate(ts("2024-05-01T10:00:00Z"), nil, tol))
	assert.False(t, TimestampUpdate(nil, local, tol))
	assert.False(t, TimestampUpdate(nil, nil, tol))
	assert.False(t, TimestampUpdate(ts("2024-05-01T10:00:05Z"), local, tol))
	assert.True(t, TimestampUpdate(ts("2024-05-01T10:00:06Z"), local, tol))
	assert.False(t, TimestampUpdate(ts("2024-04-30T10:00:00Z"), local, tol))
}

func TestInfoRecomputesOnTimestampChange(t *testing.T) {
	info := Info{tolerance: 5 * time.Second}
	info.ApplyRemoteLatest(ts("2024-05-01T10:00:00Z"))
	require.True(t, info.HasUpdate())

	info.ApplyLocalCreated(ts("2024-05-01T10:00:00Z"))
	assert.False(t, info.HasUpdate())
}

func TestStatusNotes(t *testing.T) {
	var info Info
	info.AppendStatus(notFoundNote)
	info.AppendStatus("Failed to inspect local image: boom")
	info.AppendStatus("  ")
	assert.Equal(t, notFoundNote+"; Failed to inspect local image: boom", info.Status)

	info.ClearInspectFailure()
	assert.Equal(t, notFoundNote, info.Status)
}

func registryHandler(t *testing.T, routes map[string]func(w http.ResponseWriter)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fn, ok := routes[r.URL.Path]; ok {
			fn(w)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
}

func jsonBody(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { _, _ = w.Write([]byte(body)) }
}

func TestResolveCollectsTagsAndDetectsUpdate(t *testing.T) {
	stubInspect(t, func(_ context.Context, ref string) (string, error) {
		assert.Equal(t, "ghcr.io/nexusquantum/analytics-ui:latest", ref)
		return "2024-05-01T10:00:00.123456789Z\n", nil
	})
	r := newResolver(t, registryHandler(t, map[string]func(http.ResponseWriter){
		"/orgs/NexusQuantum/packages/container/analytics-ui/versions": jsonBody(`[
			{"updated_at":"2024-05-02T00:00:00Z","metadata":{"container":{"tags":["latest","v1.10.0"]}}},
			{"created_at":"2024-04-01T00:00:00Z","metadata":{"container":{"tags":["v1.9.9","latest"]}}},
			{"created_at":"2024-03-01T00:00:00Z","metadata":{"container":{"tags":["v1.2.0"]}}}
		]`),
		"/repos/NexusQuantum/installer-NQRust-Analytics/releases/latest": jsonBody(`{"tag_name":"v0.2.0","assets":[
			{"name":"nqrust-installer_0.2.0_amd64.deb","browser_download_url":"https://example.test/a.deb"},
			{"name":"sha256sums","browser_download_url":"https://example.test/SHA256SUMS"}
		]}`),
	}), "0.1.0")

	infos, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	ui := infos[0]
	assert.Equal(t, "latest", ui.CurrentTag)
	assert.Equal(t, []string{"latest", "v1.10.0", "v1.2.0", "v1.9.9"}, ui.Tags)
	assert.Equal(t, "v1.10.0", ui.LatestRelease)
	assert.Equal(t, ts("2024-05-02T00:00:00Z").Unix(), ui.RemoteLatestAt.Unix(), "first-seen latest timestamp wins")
	require.NotNil(t, ui.LocalCreatedAt)
	assert.True(t, ui.HasUpdate())
	assert.Empty(t, ui.Status)

	self := infos[1]
	require.True(t, self.IsInstaller())
	assert.True(t, self.HasUpdate())
	require.NotNil(t, self.Installer.Asset)
	assert.Equal(t, "nqrust-installer_0.2.0_amd64.deb", self.Installer.Asset.Name)
	require.NotNil(t, self.Installer.Checksum)
	assert.Nil(t, self.LocalCreatedAt)
}

func TestResolveFallsBackToUserScope(t *testing.T) {
	stubInspect(t, func(context.Context, string) (string, error) { return "2024-05-02T00:00:00Z", nil })
	r := newResolver(t, registryHandler(t, map[string]func(http.ResponseWriter){
		"/users/NexusQuantum/packages/container/analytics-ui/versions": jsonBody(`[
			{"updated_at":"2024-05-02T00:00:03Z","metadata":{"container":{"tags":["latest"]}}}
		]`),
	}), "0.1.0")

	infos, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"latest"}, infos[0].Tags)
	assert.False(t, infos[0].HasUpdate(), "within tolerance")
	assert.Equal(t, "No installer release published", infos[1].Status)
	assert.False(t, infos[1].HasUpdate())
}

func TestResolvePackageWithoutTags(t *testing.T) {
	stubInspect(t, func(context.Context, string) (string, error) { return "2024-05-02T00:00:00Z", nil })
	r := newResolver(t, registryHandler(t, map[string]func(http.ResponseWriter){
		"/orgs/NexusQuantum/packages/container/analytics-ui/versions": jsonBody(`[
			{"created_at":"2024-05-01T00:00:00Z","metadata":{"container":{"tags":[]}}}
		]`),
	}), "0.1.0")

	infos, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	ui := infos[0]
	assert.Empty(t, ui.Tags)
	assert.Empty(t, ui.LatestRelease)
	assert.Equal(t, noTagsNote, ui.Status)
	assert.False(t, ui.HasUpdate())
}

func TestResolveNotFoundOnBothScopes(t *testing.T) {
	stubInspect(t, func(context.Context, string) (string, error) {
		return "", &process.ExitError{Command: "docker image inspect", ExitCode: 1}
	})
	r := newResolver(t, registryHandler(t, nil), "0.1.0")

	infos, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	ui := infos[0]
	assert.Empty(t, ui.Tags)
	assert.Equal(t, notFoundNote, ui.Status)
	assert.Nil(t, ui.RemoteLatestAt)
	assert.False(t, ui.HasUpdate())
}

func TestResolveAuthFailureIsFatal(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusBadGateway} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			stubInspect(t, func(context.Context, string) (string, error) { return "", nil })
			r := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"message":"denied by policy"}`))
			}), "0.1.0")

			_, err := r.Resolve(context.Background(), "tok")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "denied by policy")
			assert.Contains(t, err.Error(), "Analytics UI")
		})
	}
}

func TestResolveInspectFailureIsNote(t *testing.T) {
	stubInspect(t, func(context.Context, string) (string, error) {
		return "", errors.New(`exec: "docker": executable file not found in $PATH`)
	})
	r := newResolver(t, registryHandler(t, map[string]func(http.ResponseWriter){
		"/orgs/NexusQuantum/packages/container/analytics-ui/versions": jsonBody(`[
			{"updated_at":"2024-05-02T00:00:00Z","metadata":{"container":{"tags":["latest"]}}}
		]`),
	}), "0.1.0")

	infos, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	ui := infos[0]
	assert.True(t, strings.HasPrefix(ui.Status, inspectFailurePrefix))
	assert.Nil(t, ui.LocalCreatedAt)
	assert.True(t, ui.HasUpdate(), "unknown local state reports an update")
}

func TestInstallerReleaseWithoutAsset(t *testing.T) {
	stubInspect(t, func(context.Context, string) (string, error) { return "", nil })
	r := newResolver(t, registryHandler(t, map[string]func(http.ResponseWriter){
		"/repos/NexusQuantum/installer-NQRust-Analytics/releases/latest": jsonBody(`{"tag_name":"v0.1.0","assets":[]}`),
	}), "0.1.0")

	infos, err := r.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	self := infos[1]
	assert.False(t, self.HasUpdate())
	assert.Nil(t, self.Installer.Asset)
	assert.Contains(t, self.Status, "has no *_amd64.deb asset")
}

func TestPullUsesSeam(t *testing.T) {
	prev := pullImageFn
	t.Cleanup(func() { pullImageFn = prev })
	var got string
	pullImageFn = func(_ context.Context, _ *slog.Logger, ref string, sink chan<- process.Line) error {
		got = ref
		sink <- process.Line{Text: "latest: Pulling from nexusquantum/analytics-ui"}
		return nil
	}
	r := newResolver(t, registryHandler(t, nil), "0.1.0")

	sink := make(chan process.Line, 1)
	require.NoError(t, r.Pull(context.Background(), "ghcr.io/nexusquantum/analytics-ui:latest", sink))
	assert.Equal(t, "ghcr.io/nexusquantum/analytics-ui:latest", got)
	assert.Len(t, sink, 1)
}
