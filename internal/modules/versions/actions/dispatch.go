package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/tree"
	"github.com/nine3/versions/internal/pkg/pagination"
	"github.com/nine3/versions/internal/pkg/response"
	"go.uber.org/zap"
)

const actionPrefix = "nine3v-"

// Action names accepted by the dispatcher, without the optional prefix.
const (
	ActionEdit      = "edit"
	ActionAdd       = "add"
	ActionView      = "view"
	ActionClonePage = "clone-page"
	ActionClone     = "clone"
	ActionMove      = "move"
	ActionDelete    = "delete"
	ActionOrder     = "order"
	ActionClear     = "clear"
	ActionReplace   = "replace"
	ActionPublish   = "publish"
)

// Selection is the page an editor picked as the source of a tree operation.
type Selection struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Result is the reply to one action call.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Target   string `json:"target,omitempty"`
	Delay    int    `json:"delay,omitempty"`
	Complete bool   `json:"complete,omitempty"`

	PageID int64           `json:"page_id,omitempty"`
	Offset int             `json:"offset,omitempty"`
	Total  int             `json:"total,omitempty"`
	Added  map[int64]int64 `json:"added,omitempty"`
	Parent *int64          `json:"parent,omitempty"`

	Replaced  *ReplaceCounts `json:"replaced,omitempty"`
	Published *int64         `json:"published,omitempty"`
	Failed    []int64        `json:"failed,omitempty"`

	Items      []*versions.Node     `json:"items,omitempty"`
	Pagination *response.Pagination `json:"pagination,omitempty"`

	// Selected is set after a clone; ClearSelection after "clear".
	Selected       *Selection `json:"selected,omitempty"`
	ClearSelection bool       `json:"-"`
}

// Dispatcher maps action names onto engine operations and applies the
// invalidation each operation reports.
type Dispatcher struct {
	engine *Engine
	tree   *tree.Builder
	purger versions.Purger
	site   versions.Site
	logger *zap.Logger
}

func NewDispatcher(engine *Engine, tb *tree.Builder, purger versions.Purger, site versions.Site, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: engine, tree: tb, purger: purger, site: site, logger: logger}
}

// Do runs one action. Failures are reported in the result, never as a Go error.
func (d *Dispatcher) Do(ctx context.Context, req Request) Result {
	pageID := int64(req.PageID)
	if pageID <= 0 {
		return Result{Message: "Page ID not provided."}
	}
	data, err := decodePayload(req.Data)
	if err != nil {
		return Result{Message: "Invalid data: " + err.Error()}
	}

	action := strings.TrimPrefix(req.Action, actionPrefix)
	var (
		res      Result
		affected Affected
	)
	switch action {
	case ActionEdit:
		res = d.edit(ctx, pageID)
	case ActionAdd:
		res, affected = d.add(ctx, pageID, data)
	case ActionView:
		res = d.view(ctx, pageID, data)
	case ActionClonePage:
		res, affected = d.clonePage(ctx, pageID)
	case ActionClone:
		res, affected = d.cloneTree(ctx, pageID, data)
	case ActionMove:
		res, affected = d.move(ctx, pageID, data)
	case ActionDelete:
		res, affected = d.delete(ctx, pageID)
	case ActionOrder:
		res, affected = d.order(ctx, pageID, data)
	case ActionClear:
		res = Result{Success: true, Message: "Selection cleared.", ClearSelection: true}
	case ActionReplace:
		res, affected = d.replace(ctx, pageID, data)
	case ActionPublish:
		res, affected = d.publish(ctx, pageID)
	default:
		return Result{Message: "Action not provided."}
	}

	d.invalidate(ctx, affected)
	return res
}

func (d *Dispatcher) invalidate(ctx context.Context, affected Affected) {
	for _, scope := range affected {
		switch scope {
		case versions.ScopeSiteTree:
			if d.tree == nil {
				continue
			}
			if err := d.tree.Invalidate(ctx); err != nil {
				d.logger.Warn("invalidate site tree", zap.Error(err))
			}
		case versions.ScopePublicCache:
			if d.purger == nil {
				continue
			}
			purgeCtx := context.WithoutCancel(ctx)
			go func() {
				if err := d.purger.Purge(purgeCtx); err != nil {
					d.logger.Warn("purge public cache", zap.Error(err))
				}
			}()
		}
	}
}

func failure(err error) Result {
	res := Result{Message: errorMessage(err)}
	var domain *versions.Error
	if errors.As(err, &domain) && domain.Kind == versions.KindPartial {
		res.Failed = domain.IDs
	}
	return res
}

func errorMessage(err error) string {
	var domain *versions.Error
	if !errors.As(err, &domain) {
		return "Something went wrong:\n" + err.Error()
	}
	switch domain.Kind {
	case versions.KindNotFound:
		return "Page ID does not exist."
	case versions.KindStore:
		return "Something went wrong:\n" + err.Error()
	default:
		return domain.Error()
	}
}

// EditLink is the editor URL of a page.
func EditLink(site versions.Site, id int64) string {
	return fmt.Sprintf("%s/pages/%d/edit", strings.TrimRight(site.AdminURL, "/"), id)
}

func (d *Dispatcher) edit(ctx context.Context, id int64) Result {
	if _, err := d.engine.mustExist(ctx, id); err != nil {
		if versions.KindOf(err) == versions.KindNotFound {
			return Result{Message: "Page not found."}
		}
		return failure(err)
	}
	return Result{Success: true, Message: "Redirecting...", Target: EditLink(d.site, id)}
}

func (d *Dispatcher) add(ctx context.Context, parentID int64, data payload) (Result, Affected) {
	title := ""
	if data.Title != nil {
		title = *data.Title
	}
	id, affected, err := d.engine.AddChild(ctx, parentID, title)
	if err != nil {
		return failure(err), affected
	}
	return Result{Success: true, Message: "Redirecting...", Target: EditLink(d.site, id), PageID: id}, affected
}

func (d *Dispatcher) view(ctx context.Context, rootID int64, data payload) Result {
	flat, err := d.tree.Flat(ctx, rootID)
	if err != nil {
		return failure(versions.Store("load page tree", err))
	}
	if flat == nil {
		return failure(versions.NotFound(rootID))
	}
	items, meta := pagination.Slice(flat, pagination.New(data.Page, data.Size))
	return Result{Success: true, Message: "Pages Loaded", Delay: 500, Items: items, Pagination: &meta}
}

func (d *Dispatcher) clonePage(ctx context.Context, id int64) (Result, Affected) {
	newID, affected, err := d.engine.ClonePage(ctx, id)
	if err != nil {
		return failure(err), affected
	}
	return Result{Success: true, Message: "Page successfully cloned.", Target: EditLink(d.site, newID), PageID: newID}, affected
}

func (d *Dispatcher) cloneTree(ctx context.Context, rootID int64, data payload) (Result, Affected) {
	step, affected, err := d.engine.CloneTreeStep(ctx, rootID, data.progress())
	if err != nil {
		return failure(err), affected
	}
	res := Result{
		Success:  true,
		Message:  step.Message(),
		Complete: step.Complete,
		PageID:   step.NewID,
		Offset:   step.Progress.Offset,
		Total:    step.Progress.Total,
		Added:    step.Progress.Added,
		Parent:   step.Progress.Parent,
	}
	// The copy of the root becomes the editor's selection.
	if !step.Complete && step.Progress.Offset == 1 {
		sel := &Selection{ID: step.NewID}
		if p, err := d.engine.pages.Get(ctx, step.NewID); err == nil && p != nil {
			sel.Title = p.Title
		}
		res.Selected = sel
	}
	return res, affected
}

func (d *Dispatcher) move(ctx context.Context, rootID int64, data payload) (Result, Affected) {
	affected, err := d.engine.MoveTree(ctx, rootID, data.parentID())
	if err != nil {
		return failure(err), affected
	}
	return Result{Success: true, Message: "Page tree successfully moved."}, affected
}

func (d *Dispatcher) delete(ctx context.Context, rootID int64) (Result, Affected) {
	affected, err := d.engine.DeleteTree(ctx, rootID)
	if err != nil {
		return failure(err), affected
	}
	return Result{Success: true, Message: "Page tree successfully deleted."}, affected
}

func (d *Dispatcher) order(ctx context.Context, id int64, data payload) (Result, Affected) {
	affected, err := d.engine.Reorder(ctx, id, data.Order)
	if err != nil {
		if versions.KindOf(err) == versions.KindStore {
			return Result{Message: "Update failed."}, affected
		}
		return failure(err), affected
	}
	return Result{Success: true, Message: "Order updated."}, affected
}

func (d *Dispatcher) replace(ctx context.Context, rootID int64, data payload) (Result, Affected) {
	counts, affected, err := d.engine.SearchReplace(ctx, rootID, data.From, data.To)
	if err != nil {
		return failure(err), affected
	}
	msg := fmt.Sprintf("Search/replace run succesfully.\nContent rows replaced: %d\nMeta rows replaced: %d", counts.Content, counts.Meta)
	return Result{Success: true, Message: msg, Replaced: &counts}, affected
}

func (d *Dispatcher) publish(ctx context.Context, rootID int64) (Result, Affected) {
	n, affected, err := d.engine.Publish(ctx, rootID)
	if err != nil {
		return failure(err), affected
	}
	return Result{Success: true, Message: fmt.Sprintf("Total posts published: %d", n), Published: &n}, affected
}
