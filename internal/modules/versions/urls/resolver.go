package urls

import (
	"context"
	"strconv"
	"strings"

	"github.com/nine3/versions/internal/modules/versions"
	"go.uber.org/zap"
)

// DecisionKind says how a request path should be served.
type DecisionKind int

const (
	// Pass leaves the path to the store's normal path lookup.
	Pass DecisionKind = iota
	// ByID serves the page with Decision.ID.
	ByID
	// ByPath serves the page found under Decision.Path, its pre-rewrite address.
	ByPath
)

func (k DecisionKind) String() string {
	switch k {
	case ByID:
		return "by_id"
	case ByPath:
		return "by_path"
	default:
		return "pass"
	}
}

// Decision is the outcome of resolving one request path.
type Decision struct {
	Kind DecisionKind
	ID   int64
	Path string
}

// LegacyTable maps historical relative paths to legacy record ids.
type LegacyTable interface {
	Lookup(path string) (string, bool)
}

// Resolver maps request paths onto pages.
type Resolver struct {
	pages  versions.PageStore
	meta   versions.MetaStore
	site   versions.Site
	linker *Linker
	legacy LegacyTable
	logger *zap.Logger
}

func NewResolver(deps versions.Deps, linker *Linker, legacy LegacyTable, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Site.URL = strings.TrimRight(deps.Site.URL, "/")
	return &Resolver{pages: deps.Pages, meta: deps.Meta, site: deps.Site, linker: linker, legacy: legacy, logger: logger}
}

// absolute turns a request path into the absolute form links are stored in,
// always with a trailing slash.
func (r *Resolver) absolute(path string) string {
	rel := strings.Trim(path, "/")
	if rel == "" {
		return r.site.URL + "/"
	}
	return r.site.URL + "/" + rel + "/"
}

func (r *Resolver) byNewURL(ctx context.Context, url string) (int64, error) {
	id, err := r.meta.FindByMeta(ctx, versions.MetaNewURL, url)
	if err != nil || id != 0 {
		return id, err
	}
	return r.meta.FindByMeta(ctx, versions.MetaNewURL, strings.TrimRight(url, "/"))
}

// Resolve picks the page a request path refers to. previewID, when non-zero,
// wins over everything else.
func (r *Resolver) Resolve(ctx context.Context, path string, previewID int64) (Decision, error) {
	if previewID > 0 {
		return Decision{Kind: ByID, ID: previewID}, nil
	}
	rel := strings.Trim(path, "/")
	if rel == "" {
		return Decision{Kind: Pass}, nil
	}

	id, err := r.meta.FindByMeta(ctx, versions.MetaCustomURL, rel)
	if err != nil {
		return Decision{}, err
	}
	full := r.absolute(path)
	if id == 0 {
		if id, err = r.byNewURL(ctx, full); err != nil {
			return Decision{}, err
		}
	}
	if id == 0 {
		if prefix, _, ok := versions.SplitVersionSuffix(full); ok {
			if id, err = r.meta.FindByMeta(ctx, versions.MetaNewURL, prefix+"/"+latestSegment+"/"); err != nil {
				return Decision{}, err
			}
		}
	}
	if id == 0 {
		return Decision{Kind: Pass, Path: rel}, nil
	}

	old, err := r.meta.GetMeta(ctx, id, versions.MetaOldURL)
	if err != nil {
		return Decision{}, err
	}
	if old = strings.Trim(strings.TrimPrefix(old, r.site.URL), "/"); old != "" {
		return Decision{Kind: ByPath, ID: id, Path: old}, nil
	}
	return Decision{Kind: ByID, ID: id}, nil
}

// Recover404 looks for a redirect target for a path nothing was found under:
// first in the legacy path table, then under the path's "latest" version.
// It returns "" when there is nowhere to go.
func (r *Resolver) Recover404(ctx context.Context, path string) (string, error) {
	rel := strings.Trim(path, "/")

	if r.legacy != nil {
		if legacyID, ok := r.legacy.Lookup(rel); ok {
			id, err := r.meta.FindByMeta(ctx, versions.MetaOriginalID, legacyID)
			if err != nil {
				return "", err
			}
			if id != 0 {
				link, err := r.linker.Permalink(ctx, id)
				if err != nil {
					return "", err
				}
				if strings.Contains(rel, latestSegment) && !strings.Contains(link, latestSegment) {
					if prefix, _, ok := versions.SplitVersionSuffix(link); ok {
						link = prefix + "/" + latestSegment + "/"
					}
				}
				r.logger.Debug("legacy redirect", zap.String("path", rel), zap.Int64("page_id", id))
				return link, nil
			}
		}
	}

	if strings.Contains(rel, latestSegment) {
		return "", nil
	}
	id, err := r.byNewURL(ctx, r.absolute(rel+"/"+latestSegment))
	if err != nil || id == 0 {
		return "", err
	}
	return r.linker.Permalink(ctx, id)
}

// RedirectTarget returns the forced redirect configured on a page. Search
// requests are never redirected.
func (r *Resolver) RedirectTarget(ctx context.Context, id int64, search bool) (string, error) {
	if search {
		return "", nil
	}
	raw, err := r.meta.GetMeta(ctx, id, versions.MetaRedirectToURL)
	if err != nil {
		return "", err
	}
	return versions.LinkValue(raw), nil
}

// ParsePreviewID reads the preview_id query value; anything unparsable is 0.
func ParsePreviewID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
