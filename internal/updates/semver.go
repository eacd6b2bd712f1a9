package updates

import (
	"strings"

	"golang.org/x/mod/semver"
)

// canonical turns "1.2.3" or "v1.2.3" into "v1.2.3". Shorthand like "1.2"
// is rejected even though x/mod/semver accepts it.
func canonical(tag string) (string, bool) {
	v := "v" + strings.TrimPrefix(strings.TrimSpace(tag), "v")
	if !semver.IsValid(v) {
		return "", false
	}
	base := v
	if i := strings.IndexByte(base, '+'); i >= 0 {
		base = base[:i]
	}
	if semver.Canonical(v) != base {
		return "", false
	}
	return v, true
}

// LatestRelease returns the highest tag by semantic-version precedence, or ""
// when no tag parses. Among equal versions the first one seen wins.
func LatestRelease(tags []string) string {
	best, bestV := "", ""
	for _, tag := range tags {
		v, ok := canonical(tag)
		if !ok {
			continue
		}
		if bestV == "" || semver.Compare(v, bestV) > 0 {
			best, bestV = tag, v
		}
	}
	return best
}

// IsNewer reports whether candidate is a strictly higher version than
// current. An unparseable current version counts as v0.0.0.
func IsNewer(candidate, current string) bool {
	c, ok := canonical(candidate)
	if !ok {
		return false
	}
	cur, ok := canonical(current)
	if !ok {
		cur = "v0.0.0"
	}
	return semver.Compare(c, cur) > 0
}
