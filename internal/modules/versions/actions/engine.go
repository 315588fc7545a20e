package actions

import (
	"context"
	"errors"

	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/clone"
	"github.com/nine3/versions/internal/modules/versions/tree"
	"go.uber.org/zap"
)

const (
	defaultChildTitle = "New post draft"
	clonedSuffix      = " (Cloned)"
)

// Affected lists the derived state an operation invalidated.
type Affected []versions.Scope

var (
	affectsTree    = Affected{versions.ScopeSiteTree}
	affectsTreeWeb = Affected{versions.ScopeSiteTree, versions.ScopePublicCache}
)

// LinkRefresher recomputes the stored links of a page after it was saved.
type LinkRefresher interface {
	Refresh(ctx context.Context, id int64) error
}

// Engine runs structural operations on page trees. It performs no cache
// invalidation itself; every mutating method reports what it affected.
type Engine struct {
	pages  versions.PageStore
	meta   versions.MetaStore
	tree   *tree.Builder
	dup    *clone.Duplicator
	links  LinkRefresher
	logger *zap.Logger
}

func NewEngine(deps versions.Deps, tb *tree.Builder, dup *clone.Duplicator, links LinkRefresher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{pages: deps.Pages, meta: deps.Meta, tree: tb, dup: dup, links: links, logger: logger}
}

func (e *Engine) mustExist(ctx context.Context, id int64) (*versions.Page, error) {
	if id <= 0 {
		return nil, versions.Validation("Page ID not provided.")
	}
	p, err := e.pages.Get(ctx, id)
	if err != nil {
		return nil, versions.Store("load page", err)
	}
	if p == nil {
		return nil, versions.NotFound(id)
	}
	return p, nil
}

func (e *Engine) refresh(ctx context.Context, ids ...int64) {
	if e.links == nil {
		return
	}
	for _, id := range ids {
		if err := e.links.Refresh(ctx, id); err != nil {
			e.logger.Warn("refresh page links", zap.Int64("page_id", id), zap.Error(err))
		}
	}
}

// AddChild creates a draft child page under parentID.
func (e *Engine) AddChild(ctx context.Context, parentID int64, title string) (int64, Affected, error) {
	if _, err := e.mustExist(ctx, parentID); err != nil {
		return 0, nil, err
	}
	if title == "" {
		title = defaultChildTitle
	}
	id, err := e.pages.Create(ctx, &versions.Page{
		ParentID: parentID,
		Title:    title,
		Status:   versions.StatusDraft,
	})
	if err != nil {
		return 0, nil, versions.Store("create page", err)
	}
	e.refresh(ctx, id)
	e.logger.Info("page added", zap.Int64("page_id", id), zap.Int64("parent_id", parentID))
	return id, affectsTree, nil
}

// ClonePage duplicates a single page next to itself.
func (e *Engine) ClonePage(ctx context.Context, id int64) (int64, Affected, error) {
	p, err := e.mustExist(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	newID, err := e.dup.Duplicate(ctx, id, p.ParentID, p.Title+clonedSuffix)
	if newID != 0 {
		e.refresh(ctx, newID)
	}
	if err != nil {
		if newID != 0 {
			return newID, affectsTree, err
		}
		return 0, nil, err
	}
	return newID, affectsTree, nil
}

// MoveTree reparents rootID. Descendants follow through their parent pointers.
func (e *Engine) MoveTree(ctx context.Context, rootID int64, newParentID *int64) (Affected, error) {
	if _, err := e.mustExist(ctx, rootID); err != nil {
		return nil, err
	}
	if newParentID == nil {
		return nil, versions.Validation("Parent ID not provided.")
	}
	subtree, err := e.tree.Subtree(ctx, rootID)
	if err != nil {
		return nil, versions.Store("load page tree", err)
	}
	for _, id := range subtree {
		if id == *newParentID {
			return nil, versions.Validation("A page cannot be moved under itself.")
		}
	}
	if *newParentID != 0 {
		if _, err := e.mustExist(ctx, *newParentID); err != nil {
			return nil, err
		}
	}

	if err := e.pages.Update(ctx, rootID, versions.PageUpdate{ParentID: newParentID}); err != nil {
		return nil, versions.Store("move page", err)
	}
	e.refresh(ctx, subtree...)
	e.logger.Info("tree moved", zap.Int64("page_id", rootID), zap.Int64("parent_id", *newParentID))
	return affectsTree, nil
}

// DeleteTree deletes rootID and every descendant. It attempts all of them and
// reports the ids that could not be deleted as a partial failure.
func (e *Engine) DeleteTree(ctx context.Context, rootID int64) (Affected, error) {
	if _, err := e.mustExist(ctx, rootID); err != nil {
		return nil, err
	}
	ids, err := e.tree.Subtree(ctx, rootID)
	if err != nil {
		return nil, versions.Store("load page tree", err)
	}

	var failed []int64
	for _, id := range ids {
		if err := e.pages.Delete(ctx, id); err != nil {
			e.logger.Warn("delete page", zap.Int64("page_id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}
	e.logger.Info("tree deleted",
		zap.Int64("page_id", rootID),
		zap.Int("pages", len(ids)),
		zap.Int("failed", len(failed)),
	)
	if len(failed) == len(ids) {
		return nil, versions.Partial("Some posts could not be deleted", failed)
	}
	if len(failed) > 0 {
		return affectsTree, versions.Partial("Some posts could not be deleted", failed)
	}
	return affectsTree, nil
}

// Reorder sets the explicit sort position of one page.
func (e *Engine) Reorder(ctx context.Context, id int64, order *int) (Affected, error) {
	if _, err := e.mustExist(ctx, id); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, versions.Validation("Order not provided.")
	}
	if err := e.pages.Update(ctx, id, versions.PageUpdate{Order: order}); err != nil {
		return nil, versions.Store("Update failed.", err)
	}
	return affectsTree, nil
}

// ReplaceCounts reports the rows a search/replace touched.
type ReplaceCounts struct {
	Content int64 `json:"posts"`
	Meta    int64 `json:"postmeta"`
}

// SearchReplace replaces every literal occurrence of from with to in the body
// and the metadata values of rootID and its descendants.
func (e *Engine) SearchReplace(ctx context.Context, rootID int64, from, to *string) (ReplaceCounts, Affected, error) {
	if _, err := e.mustExist(ctx, rootID); err != nil {
		return ReplaceCounts{}, nil, err
	}
	if from == nil || to == nil || *from == "" {
		return ReplaceCounts{}, nil, versions.Validation("Search and replace strings not provided.")
	}
	ids, err := e.tree.Subtree(ctx, rootID)
	if err != nil {
		return ReplaceCounts{}, nil, versions.Store("load page tree", err)
	}

	var counts ReplaceCounts
	counts.Content, err = e.pages.ReplaceText(ctx, ids, *from, *to)
	if err != nil {
		return counts, nil, versions.Store("replace in content", err)
	}
	counts.Meta, err = e.meta.ReplaceMeta(ctx, ids, *from, *to)
	if err != nil {
		return counts, affectsTreeWeb, versions.Store("replace in meta", err)
	}
	e.logger.Info("tree search/replace",
		zap.Int64("page_id", rootID),
		zap.Int64("content_rows", counts.Content),
		zap.Int64("meta_rows", counts.Meta),
	)
	return counts, affectsTreeWeb, nil
}

// Publish moves every draft in the tree to published and returns how many changed.
func (e *Engine) Publish(ctx context.Context, rootID int64) (int64, Affected, error) {
	if _, err := e.mustExist(ctx, rootID); err != nil {
		return 0, nil, err
	}
	ids, err := e.tree.Subtree(ctx, rootID)
	if err != nil {
		return 0, nil, versions.Store("load page tree", err)
	}
	n, err := e.pages.PublishDrafts(ctx, ids)
	if err != nil {
		return 0, nil, versions.Store("publish pages", err)
	}
	e.logger.Info("tree published", zap.Int64("page_id", rootID), zap.Int64("published", n))
	return n, affectsTreeWeb, nil
}

// IsPartial reports whether err is a partial batch failure.
func IsPartial(err error) bool {
	var domain *versions.Error
	return errors.As(err, &domain) && domain.Kind == versions.KindPartial
}
