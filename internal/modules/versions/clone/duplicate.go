package clone

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nine3/versions/internal/modules/versions"
	"go.uber.org/zap"
)

// excludedMeta never survives a clone.
var excludedMeta = []string{
	versions.MetaLatestVersion,
	versions.MetaOriginalID,
	versions.MetaVersionNumber,
	versions.MetaRedirectToURL,
	versions.MetaPrimaryMenu,
}

// contentFixes un-escapes artifacts left in stored bodies by earlier copies.
var contentFixes = strings.NewReplacer(
	"u003c", "<",
	"u003e", ">",
	"u0022", "'",
	"u0026", "&",
	`\r\n`, "<br>",
	`\t`, "<br>",
)

// Duplicator copies single pages.
type Duplicator struct {
	pages  versions.PageStore
	meta   versions.MetaStore
	now    func() time.Time
	logger *zap.Logger
}

func NewDuplicator(deps versions.Deps, logger *zap.Logger) *Duplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Duplicator{pages: deps.Pages, meta: deps.Meta, now: time.Now, logger: logger}
}

// WithClock replaces the time source, for tests.
func (d *Duplicator) WithClock(now func() time.Time) *Duplicator {
	d.now = now
	return d
}

// Duplicate creates a draft copy of sourceID under newParentID titled newTitle
// and returns the new page id.
func (d *Duplicator) Duplicate(ctx context.Context, sourceID, newParentID int64, newTitle string) (int64, error) {
	source, err := d.pages.Get(ctx, sourceID)
	if err != nil {
		return 0, versions.Store("load source page", err)
	}
	if source == nil {
		return 0, versions.NotFound(sourceID)
	}

	now := d.now()
	copied := *source
	copied.ID = 0
	copied.GUID = ""
	copied.Status = versions.StatusDraft
	copied.ParentID = newParentID
	copied.Title = newTitle
	copied.CreatedAt = now
	copied.UpdatedAt = now
	copied.Text = CleanupContent(source.Text)

	var version string
	if versions.HasVersionHint(newTitle) {
		// Version pages are named after their version; otherwise the store
		// derives a path name from the title.
		copied.Slug = ""
		if v, ok := versions.VersionFromTitle(newTitle, false); ok {
			version = v
			copied.Slug, _ = versions.VersionFromTitle(newTitle, true)
		}
	}

	newID, err := d.pages.Create(ctx, &copied)
	if err != nil {
		return 0, versions.Store("create page", err)
	}

	if err := d.copyMeta(ctx, sourceID, newID, now, version); err != nil {
		return newID, err
	}

	if err := d.rewriteVersion(ctx, sourceID, newID, copied.Text); err != nil {
		return newID, err
	}

	d.logger.Info("page duplicated",
		zap.Int64("source_id", sourceID),
		zap.Int64("page_id", newID),
		zap.Int64("parent_id", newParentID),
	)
	return newID, nil
}

func (d *Duplicator) copyMeta(ctx context.Context, sourceID, newID int64, now time.Time, version string) error {
	data, err := d.meta.AllMeta(ctx, sourceID)
	if err != nil {
		return versions.Store("read source meta", err)
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := d.meta.SetMeta(ctx, newID, key, data[key]); err != nil {
			return versions.Store("copy meta "+key, err)
		}
	}

	marks := [][2]string{
		{versions.MetaCloned, "1"},
		{versions.MetaClonedFrom, strconv.FormatInt(sourceID, 10)},
		{versions.MetaVersionDate, now.Format("20060102")},
	}
	if version != "" {
		marks = append(marks, [2]string{versions.MetaVersion, version})
	}
	for _, kv := range marks {
		if err := d.meta.SetMeta(ctx, newID, kv[0], kv[1]); err != nil {
			return versions.Store("set meta "+kv[0], err)
		}
	}

	for _, key := range excludedMeta {
		if err := d.meta.DeleteMeta(ctx, newID, key); err != nil {
			return versions.Store("delete meta "+key, err)
		}
	}
	return nil
}

// rewriteVersion swaps the source's effective version fragment for the new
// page's one inside the copied body.
func (d *Duplicator) rewriteVersion(ctx context.Context, sourceID, newID int64, text string) error {
	oldVersion, err := versions.ResolveMeta(ctx, d.pages, d.meta, sourceID, versions.MetaVersion)
	if err != nil {
		return versions.Store("resolve source version", err)
	}
	newVersion, err := versions.ResolveMeta(ctx, d.pages, d.meta, newID, versions.MetaVersion)
	if err != nil {
		return versions.Store("resolve clone version", err)
	}
	if !oldVersion.Found() || !newVersion.Found() {
		return nil
	}

	from := versionFragment(oldVersion.Value)
	to := versionFragment(newVersion.Value)
	if from == to || !strings.Contains(text, from) {
		return nil
	}
	rewritten := strings.ReplaceAll(text, from, to)
	if err := d.pages.Update(ctx, newID, versions.PageUpdate{Text: &rewritten}); err != nil {
		return versions.Store("rewrite version in content", err)
	}
	return nil
}

func versionFragment(version string) string {
	return strings.ReplaceAll("/"+strings.Trim(version, "/"), ".", "-")
}

// CleanupContent applies the fixed un-escape table to a copied body.
func CleanupContent(text string) string {
	return contentFixes.Replace(text)
}
