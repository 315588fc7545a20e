package urls

import (
	"context"
	"sort"
	"strings"

	"github.com/nine3/versions/internal/modules/versions"
	"golang.org/x/mod/semver"
)

// VersionLink is one entry of a page's version switcher.
type VersionLink struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// ListVersions returns the other versions of a page, newest first.
//
// A page inheriting a version is matched against the version pages next to
// the one supplying it. A page without a version lists its own children that
// carry one.
func (r *Resolver) ListVersions(ctx context.Context, id int64) ([]VersionLink, error) {
	inherited, err := versions.ResolveMeta(ctx, r.pages, r.meta, id, versions.MetaVersion)
	if err != nil {
		return nil, err
	}
	found := map[string]string{}

	if !inherited.Found() {
		children, err := r.pages.Children(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			v, err := r.meta.GetMeta(ctx, child.ID, versions.MetaVersion)
			if err != nil {
				return nil, err
			}
			if v == "" {
				continue
			}
			link, err := r.linker.Permalink(ctx, child.ID)
			if err != nil {
				return nil, err
			}
			found[v] = link
		}
		return sortVersions(found), nil
	}

	current, err := r.linker.Permalink(ctx, id)
	if err != nil {
		return nil, err
	}
	found[inherited.Value] = current

	source, err := r.pages.Get(ctx, inherited.SourceID)
	if err != nil {
		return nil, err
	}
	if source == nil || source.ParentID == 0 {
		return sortVersions(found), nil
	}

	template := versionTemplate(current, r.site.URL, versions.SlugVersion(inherited.Value))
	siblings, err := r.pages.Children(ctx, source.ParentID)
	if err != nil {
		return nil, err
	}
	for _, sibling := range siblings {
		if sibling.ID == source.ID {
			continue
		}
		v, err := r.meta.GetMeta(ctx, sibling.ID, versions.MetaVersion)
		if err != nil {
			return nil, err
		}
		if v == "" {
			continue
		}
		segment := versions.SlugVersion(v)
		latest, err := r.meta.GetMeta(ctx, sibling.ID, versions.MetaLatestVersion)
		if err != nil {
			return nil, err
		}
		if versions.IsTruthy(latest) {
			segment = latestSegment
		}
		match, err := r.byNewURL(ctx, r.absolute(template+"/"+segment))
		if err != nil {
			return nil, err
		}
		if match == 0 {
			continue
		}
		link, err := r.linker.Permalink(ctx, match)
		if err != nil {
			return nil, err
		}
		found[v] = link
	}
	return sortVersions(found), nil
}

// versionTemplate strips the site, the version segment and any "latest"
// segment from a link, leaving the path shared by all versions of a page.
func versionTemplate(link, site, slug string) string {
	path := strings.TrimPrefix(link, site)
	segments := strings.Split(strings.Trim(path, "/"), "/")
	kept := segments[:0:0]
	for _, seg := range segments {
		if seg == "" || seg == slug || seg == latestSegment {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, "/")
}

// canonicalVersion maps tokens like "v2.1" or "v2-1" onto a comparable
// semantic version; unparsable tokens yield "".
func canonicalVersion(token string) string {
	v := strings.ToLower(strings.TrimSpace(token))
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(strings.ReplaceAll(v, "-", "."))
}

func sortVersions(found map[string]string) []VersionLink {
	out := make([]VersionLink, 0, len(found))
	for v, link := range found {
		out = append(out, VersionLink{Version: v, URL: link})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := semver.Compare(canonicalVersion(out[i].Version), canonicalVersion(out[j].Version)); c != 0 {
			return c > 0
		}
		return out[i].Version > out[j].Version
	})
	return out
}
