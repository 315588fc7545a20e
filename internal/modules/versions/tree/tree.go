package tree

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nine3/versions/internal/modules/versions"
	"go.uber.org/zap"
)

// DefaultCacheKey holds the whole-site tree snapshot.
const DefaultCacheKey = "nine3v_array_trans"

// Builder reads page trees out of the content store.
type Builder struct {
	pages    versions.PageStore
	cache    versions.Cache
	cacheKey string
	logger   *zap.Logger
}

func NewBuilder(deps versions.Deps, cacheKey string, logger *zap.Logger) *Builder {
	if cacheKey == "" {
		cacheKey = DefaultCacheKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{pages: deps.Pages, cache: deps.Cache, cacheKey: cacheKey, logger: logger}
}

// Hierarchy returns the nested tree rooted at rootID, or nil when the root does not exist.
func (b *Builder) Hierarchy(ctx context.Context, rootID int64) (*versions.Node, error) {
	root, err := b.pages.Get(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", rootID, err)
	}
	if root == nil {
		return nil, nil
	}
	descendants, err := b.pages.Descendants(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("load descendants of %d: %w", rootID, err)
	}
	return Assemble(*root, descendants), nil
}

// Flat returns the root followed by its descendants in store order, each
// annotated with the ids of its direct children. Missing roots yield nil.
func (b *Builder) Flat(ctx context.Context, rootID int64) ([]*versions.Node, error) {
	root, err := b.pages.Get(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", rootID, err)
	}
	if root == nil {
		return nil, nil
	}
	descendants, err := b.pages.Descendants(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("load descendants of %d: %w", rootID, err)
	}

	flat := make([]*versions.Node, 0, len(descendants)+1)
	flat = append(flat, versions.Summary(*root))
	for _, p := range descendants {
		flat = append(flat, versions.Summary(p))
	}
	for _, node := range flat {
		children, err := b.pages.Children(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("load children of %d: %w", node.ID, err)
		}
		for _, child := range children {
			node.ChildIDs = append(node.ChildIDs, child.ID)
		}
	}
	return flat, nil
}

// Subtree returns rootID followed by every descendant id, whatever their status.
func (b *Builder) Subtree(ctx context.Context, rootID int64) ([]int64, error) {
	descendants, err := b.pages.Descendants(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("load descendants of %d: %w", rootID, err)
	}
	ids := make([]int64, 0, len(descendants)+1)
	ids = append(ids, rootID)
	for _, p := range descendants {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Site returns every root page with its descendants, served from the
// process cache when a snapshot is present.
func (b *Builder) Site(ctx context.Context) ([]*versions.Node, error) {
	if b.cache != nil {
		raw, err := b.cache.Get(ctx, b.cacheKey)
		if err != nil {
			b.logger.Warn("read site tree snapshot", zap.Error(err))
		} else if raw != "" {
			var cached []*versions.Node
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
			b.logger.Warn("discard unreadable site tree snapshot")
		}
	}

	roots, err := b.pages.Roots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load root pages: %w", err)
	}
	site := make([]*versions.Node, 0, len(roots))
	for _, root := range roots {
		descendants, err := b.pages.Descendants(ctx, root.ID)
		if err != nil {
			return nil, fmt.Errorf("load descendants of %d: %w", root.ID, err)
		}
		site = append(site, Assemble(root, descendants))
	}

	if b.cache != nil {
		if raw, err := json.Marshal(site); err == nil {
			if err := b.cache.Set(ctx, b.cacheKey, raw, 0); err != nil {
				b.logger.Warn("store site tree snapshot", zap.Error(err))
			}
		}
	}
	return site, nil
}

// Invalidate drops the site tree snapshot.
func (b *Builder) Invalidate(ctx context.Context) error {
	if b.cache == nil {
		return nil
	}
	return b.cache.Del(ctx, b.cacheKey)
}
