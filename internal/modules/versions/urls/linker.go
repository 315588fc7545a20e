package urls

import (
	"context"
	"fmt"
	"strings"

	"github.com/nine3/versions/internal/modules/versions"
	"go.uber.org/zap"
)

// Placeholder stands in for the path name of a page that has none yet.
const Placeholder = "%pagename%"

const latestSegment = "latest"

// Link is the outcome of computing a page's public address.
type Link struct {
	// URL is the address to publish, custom_url applied.
	URL string
	// New is the rewritten canonical link, Old the link before rewriting.
	New string
	Old string
	// Managed is true when the page sits under the home page or carries a
	// version, the only pages whose new_url/old_url are kept.
	Managed bool
}

// Linker computes canonical links and keeps new_url/old_url current.
type Linker struct {
	pages  versions.PageStore
	meta   versions.MetaStore
	site   versions.Site
	logger *zap.Logger
}

func NewLinker(deps versions.Deps, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Site.URL = strings.TrimRight(deps.Site.URL, "/")
	return &Linker{pages: deps.Pages, meta: deps.Meta, site: deps.Site, logger: logger}
}

// chain returns the page followed by its ancestors, farthest first.
func (l *Linker) chain(ctx context.Context, id int64) ([]versions.Page, error) {
	page, err := l.pages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, versions.NotFound(id)
	}
	ancestors, err := l.pages.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]versions.Page, len(ancestors)+1)
	for i, aid := range ancestors {
		a, err := l.pages.Get(ctx, aid)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, versions.NotFound(aid)
		}
		out[len(ancestors)-1-i] = *a
	}
	out[len(ancestors)] = *page
	return out, nil
}

func (l *Linker) join(segments []string) string {
	if len(segments) == 0 {
		return l.site.URL + "/"
	}
	return l.site.URL + "/" + strings.Join(segments, "/") + "/"
}

// Compute derives the links of a page without writing anything.
func (l *Linker) Compute(ctx context.Context, id int64) (Link, error) {
	chain, err := l.chain(ctx, id)
	if err != nil {
		return Link{}, err
	}

	raw := make([]string, 0, len(chain))
	segments := make([]string, 0, len(chain))
	underHome := false
	for i, p := range chain {
		slug := p.Slug
		if slug == "" {
			slug = Placeholder
		}
		raw = append(raw, slug)
		if l.site.HomeID != 0 && p.ID == l.site.HomeID && i < len(chain)-1 {
			underHome = true
			continue
		}
		segments = append(segments, slug)
	}

	version, err := versions.ResolveMeta(ctx, l.pages, l.meta, id, versions.MetaVersion)
	if err != nil {
		return Link{}, err
	}
	latest, err := versions.ResolveMeta(ctx, l.pages, l.meta, id, versions.MetaLatestVersion)
	if err != nil {
		return Link{}, err
	}

	link := Link{Old: l.join(raw), Managed: underHome || version.Found()}
	if version.Found() {
		token := versions.SlugVersion(strings.ToLower(strings.TrimSpace(version.Value)))
		kept := segments[:0:0]
		for _, seg := range segments {
			if seg == token || strings.HasPrefix(seg, token+"-") {
				continue
			}
			kept = append(kept, seg)
		}
		if latest.Found() {
			token = latestSegment
		}
		segments = append(kept, token)
	}
	link.New = l.join(segments)
	link.URL = link.New

	custom, err := l.meta.GetMeta(ctx, id, versions.MetaCustomURL)
	if err != nil {
		return Link{}, err
	}
	if custom = strings.Trim(strings.TrimSpace(custom), "/"); custom != "" {
		link.URL = l.site.URL + "/" + custom + "/"
	}
	return link, nil
}

// Permalink returns the public address of a page and refreshes its stored links.
func (l *Linker) Permalink(ctx context.Context, id int64) (string, error) {
	link, err := l.Compute(ctx, id)
	if err != nil {
		return "", err
	}
	if err := l.persist(ctx, id, link); err != nil {
		l.logger.Warn("persist page links", zap.Int64("page_id", id), zap.Error(err))
	}
	return link.URL, nil
}

// Refresh recomputes new_url/old_url after a page was saved. Pages that are
// neither under the home page nor versioned lose both keys.
func (l *Linker) Refresh(ctx context.Context, id int64) error {
	link, err := l.Compute(ctx, id)
	if err != nil {
		return err
	}
	return l.persist(ctx, id, link)
}

func (l *Linker) persist(ctx context.Context, id int64, link Link) error {
	if !link.Managed {
		for _, key := range []string{versions.MetaNewURL, versions.MetaOldURL} {
			if err := l.meta.DeleteMeta(ctx, id, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	}
	for key, value := range map[string]string{versions.MetaNewURL: link.New, versions.MetaOldURL: link.Old} {
		if strings.Contains(value, Placeholder) {
			continue
		}
		if err := l.meta.DeleteMeta(ctx, id, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		if err := l.meta.SetMeta(ctx, id, key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// SetCustomURL stores a manual path override; an empty path removes it.
func (l *Linker) SetCustomURL(ctx context.Context, id int64, path string) error {
	page, err := l.pages.Get(ctx, id)
	if err != nil {
		return versions.Store("load page", err)
	}
	if page == nil {
		return versions.NotFound(id)
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return versions.Store("delete custom url", l.meta.DeleteMeta(ctx, id, versions.MetaCustomURL))
	}
	if strings.Contains(path, "://") || strings.ContainsAny(path, "?# ") {
		return versions.Validation("Custom URL must be a relative path.")
	}
	return versions.Store("set custom url", l.meta.SetMeta(ctx, id, versions.MetaCustomURL, path))
}

// Relative is the page's address relative to the site root, as suggested to
// editors filling in a custom URL.
func (l *Linker) Relative(ctx context.Context, id int64) (string, error) {
	link, err := l.Permalink(ctx, id)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(link, l.site.URL+"/"), nil
}
