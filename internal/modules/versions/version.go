package versions

import (
	"regexp"
	"strings"
)

var (
	// versionHint marks a title as a version page ("Guide v2", "V3 notes").
	versionHint = regexp.MustCompile(`(?i)v\d`)
	// versionToken picks the major-minor token out of a title.
	versionToken = regexp.MustCompile(`(?i)v\d.*(-|.)\d`)
	// versionSuffix matches a request path ending in a version segment.
	versionSuffix = regexp.MustCompile(`^(.*)/((?i)v\d.*-\d*)/?$`)
)

// HasVersionHint reports whether title looks like a version page.
func HasVersionHint(title string) bool {
	return versionHint.MatchString(title)
}

// VersionFromTitle extracts the lowercase version token from title.
// Spaces become hyphens; with slug set, dots do as well.
func VersionFromTitle(title string, slug bool) (string, bool) {
	match := versionToken.FindString(title)
	if match == "" {
		return "", false
	}
	version := strings.ToLower(match)
	if slug {
		return SlugVersion(version), true
	}
	return strings.ReplaceAll(version, " ", "-"), true
}

// SlugVersion normalizes a version token for use as a path segment.
func SlugVersion(version string) string {
	return strings.NewReplacer(".", "-", " ", "-").Replace(version)
}

// SplitVersionSuffix splits a URL ending in a version segment into its prefix
// and the version segment.
func SplitVersionSuffix(url string) (prefix, version string, ok bool) {
	m := versionSuffix.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a path name from a title.
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}
