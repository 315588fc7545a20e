package actions

import (
	"context"
	"fmt"

	"github.com/nine3/versions/internal/modules/versions"
	"go.uber.org/zap"
)

// CloneProgress is the state a client echoes back between clone steps.
type CloneProgress struct {
	Offset int `json:"offset"`
	Total  int `json:"total"`
	// Added maps original page ids to the ids of their copies.
	Added map[int64]int64 `json:"added"`
	// Parent is the explicit target parent for the next step.
	Parent *int64 `json:"parent,omitempty"`
	// Title overrides the title of the root copy.
	Title *string `json:"title,omitempty"`
}

// CloneStep is the outcome of one clone invocation.
type CloneStep struct {
	Complete bool
	// NewID is the page created by this step, 0 when complete.
	NewID    int64
	Progress CloneProgress
}

// Message is the human readable summary of the step.
func (s CloneStep) Message() string {
	if s.Complete {
		return fmt.Sprintf("Total posts added: %d", s.Progress.Total)
	}
	return fmt.Sprintf("Post created: %d", s.NewID)
}

// CloneTreeStep copies the next page of rootID's tree. Each call duplicates
// exactly one page; callers repeat it, passing the returned progress back,
// until the step reports Complete.
//
// The copy lands under progress.Parent when set, otherwise under its original
// parent; a parent that was itself copied earlier in the run takes precedence.
// A failed duplicate leaves the progress where it was.
func (e *Engine) CloneTreeStep(ctx context.Context, rootID int64, progress CloneProgress) (CloneStep, Affected, error) {
	if rootID <= 0 {
		return CloneStep{}, nil, versions.Validation("Page ID not provided.")
	}
	if progress.Offset < 0 {
		return CloneStep{}, nil, versions.Validation("Invalid clone offset.")
	}
	flat, err := e.tree.Flat(ctx, rootID)
	if err != nil {
		return CloneStep{}, nil, versions.Store("load page tree", err)
	}
	if flat == nil {
		return CloneStep{}, nil, versions.NotFound(rootID)
	}

	if progress.Added == nil {
		progress.Added = map[int64]int64{}
	}
	if progress.Total <= 0 {
		progress.Total = len(flat)
	}
	if progress.Offset >= progress.Total || progress.Offset >= len(flat) {
		return CloneStep{Complete: true, Progress: progress}, nil, nil
	}

	node := flat[progress.Offset]
	title := node.Title
	if progress.Offset == 0 && progress.Title != nil && *progress.Title != "" {
		title = *progress.Title
	}

	target := node.ParentID
	if progress.Parent != nil {
		target = *progress.Parent
	}
	parentKey, hasParent := parentInList(flat, node.ID)
	if hasParent {
		if copied, ok := progress.Added[parentKey]; ok {
			target = copied
		}
	}

	newID, err := e.dup.Duplicate(ctx, node.ID, target, title)
	if err != nil {
		if newID == 0 {
			return CloneStep{Progress: progress}, nil, err
		}
		// The page exists but its metadata is incomplete; record it so the
		// rest of the tree still lands under it.
		e.logger.Warn("clone step incomplete", zap.Int64("page_id", newID), zap.Error(err))
	}
	e.refresh(ctx, newID)

	next := progress
	next.Added = make(map[int64]int64, len(progress.Added)+1)
	for k, v := range progress.Added {
		next.Added[k] = v
	}
	next.Added[node.ID] = newID
	next.Offset = progress.Offset + 1
	nextParent := newID
	if hasParent {
		nextParent = target
	}
	next.Parent = &nextParent

	e.logger.Info("clone step",
		zap.Int64("root_id", rootID),
		zap.Int64("source_id", node.ID),
		zap.Int64("page_id", newID),
		zap.Int("offset", next.Offset),
		zap.Int("total", next.Total),
	)
	return CloneStep{NewID: newID, Progress: next}, affectsTree, nil
}

// parentInList finds the node of flat whose child list contains id.
func parentInList(flat []*versions.Node, id int64) (int64, bool) {
	for _, node := range flat {
		for _, child := range node.ChildIDs {
			if child == id {
				return node.ID, true
			}
		}
	}
	return 0, false
}
