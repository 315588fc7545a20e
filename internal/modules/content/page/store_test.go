package page

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nine3/versions/internal/models"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.PageModel{}, &models.PageMetaModel{}))
	return db
}

type seeded struct {
	docs, api, guide, install int64
}

func seed(t *testing.T, s *Store) seeded {
	t.Helper()
	ctx := context.Background()
	mk := func(p versions.Page) int64 {
		id, err := s.Create(ctx, &p)
		require.NoError(t, err)
		return id
	}
	var ids seeded
	ids.docs = mk(versions.Page{Title: "Docs", Status: versions.StatusPublished})
	ids.guide = mk(versions.Page{ParentID: ids.docs, Title: "Guide", Order: 1, Status: versions.StatusPublished})
	ids.api = mk(versions.Page{ParentID: ids.docs, Title: "API", Text: "see example.com"})
	ids.install = mk(versions.Page{ParentID: ids.guide, Title: "Install", Text: "get it at example.com", Status: versions.StatusPrivate})
	return ids
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)

	p, err := s.Get(context.Background(), ids.api)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "api", p.Slug)
	assert.Equal(t, versions.StatusDraft, p.Status)
	assert.Equal(t, ids.docs, p.ParentID)
	assert.Len(t, p.GUID, 36)

	missing, err := s.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SlugsUniqueAmongSiblings(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()

	id, err := s.Create(ctx, &versions.Page{ParentID: ids.docs, Title: "API"})
	require.NoError(t, err)
	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "api-2", p.Slug)

	other, err := s.Create(ctx, &versions.Page{ParentID: ids.guide, Title: "API"})
	require.NoError(t, err)
	p, err = s.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "api", p.Slug)
}

func TestStore_ChildrenAndDescendantsOrdered(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()

	children, err := s.Children(ctx, ids.docs)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, ids.api, children[0].ID)
	assert.Equal(t, ids.guide, children[1].ID)

	all, err := s.Descendants(ctx, ids.docs)
	require.NoError(t, err)
	var got []int64
	for _, p := range all {
		got = append(got, p.ID)
	}
	assert.Equal(t, []int64{ids.api, ids.guide, ids.install}, got)

	roots, err := s.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, ids.docs, roots[0].ID)
}

func TestStore_DescendantsDetectsCycles(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, ids.docs, versions.PageUpdate{ParentID: &ids.install}))
	_, err := s.Descendants(ctx, ids.docs)
	assert.ErrorIs(t, err, versions.ErrCyclicHierarchy)

	_, err = s.Ancestors(ctx, ids.install)
	assert.ErrorIs(t, err, versions.ErrCyclicHierarchy)
}

func TestStore_AncestorsAndPath(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()

	up, err := s.Ancestors(ctx, ids.install)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids.guide, ids.docs}, up)

	p, err := s.FindByPath(ctx, "/docs/guide/install/")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ids.install, p.ID)

	p, err = s.FindByPath(ctx, "docs/install")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStore_UpdateAndSoftDelete(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()

	title := "Reference"
	slug := "guide"
	order := 5
	require.NoError(t, s.Update(ctx, ids.api, versions.PageUpdate{Title: &title, Slug: &slug, Order: &order}))
	p, err := s.Get(ctx, ids.api)
	require.NoError(t, err)
	assert.Equal(t, "Reference", p.Title)
	assert.Equal(t, "guide-2", p.Slug)
	assert.Equal(t, 5, p.Order)

	require.NoError(t, s.Delete(ctx, ids.api))
	p, err = s.Get(ctx, ids.api)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Error(t, s.Delete(ctx, ids.api))
	assert.Error(t, s.Update(ctx, ids.api, versions.PageUpdate{Title: &title}))
}

func TestStore_Meta(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetMeta(ctx, ids.guide, versions.MetaVersion, "v1.0"))
	require.NoError(t, s.SetMeta(ctx, ids.guide, versions.MetaVersion, "v2.0"))
	require.NoError(t, s.SetMeta(ctx, ids.install, versions.MetaVersion, "v2.0"))

	v, err := s.GetMeta(ctx, ids.guide, versions.MetaVersion)
	require.NoError(t, err)
	assert.Equal(t, "v2.0", v)

	empty, err := s.GetMeta(ctx, ids.api, versions.MetaVersion)
	require.NoError(t, err)
	assert.Empty(t, empty)

	all, err := s.AllMeta(ctx, ids.guide)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{versions.MetaVersion: "v2.0"}, all)

	found, err := s.FindByMeta(ctx, versions.MetaVersion, "v2.0")
	require.NoError(t, err)
	assert.Equal(t, ids.guide, found)

	require.NoError(t, s.Delete(ctx, ids.guide))
	found, err = s.FindByMeta(ctx, versions.MetaVersion, "v2.0")
	require.NoError(t, err)
	assert.Equal(t, ids.install, found)

	require.NoError(t, s.DeleteMeta(ctx, ids.install, versions.MetaVersion))
	found, err = s.FindByMeta(ctx, versions.MetaVersion, "v2.0")
	require.NoError(t, err)
	assert.Zero(t, found)
}

func TestStore_ReplaceAndPublish(t *testing.T) {
	s := NewStore(openTestDB(t))
	ids := seed(t, s)
	ctx := context.Background()
	subtree := []int64{ids.docs, ids.api, ids.guide, ids.install}
	require.NoError(t, s.SetMeta(ctx, ids.api, versions.MetaCustomURL, "example.com/api"))

	n, err := s.ReplaceText(ctx, subtree, "example.com", "example.org")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	p, err := s.Get(ctx, ids.install)
	require.NoError(t, err)
	assert.Equal(t, "get it at example.org", p.Text)

	n, err = s.ReplaceMeta(ctx, subtree, "example.com", "example.org")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ReplaceText(ctx, nil, "a", "b")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PublishDrafts(ctx, subtree)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	p, err = s.Get(ctx, ids.api)
	require.NoError(t, err)
	assert.Equal(t, versions.StatusPublished, p.Status)
	p, err = s.Get(ctx, ids.install)
	require.NoError(t, err)
	assert.Equal(t, versions.StatusPrivate, p.Status)
}

func TestService_HooksRunOnWrites(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, NewStore(db))
	ctx := context.Background()

	type call struct {
		id      int64
		deleted bool
	}
	var calls []call
	svc.OnSave(func(_ context.Context, id int64, deleted bool) {
		calls = append(calls, call{id, deleted})
	})

	p, err := svc.Create(ctx, &CreatePageDTO{Title: "Docs", Meta: map[string]string{versions.MetaVersion: "v1.0"}}, "u1")
	require.NoError(t, err)
	assert.Equal(t, versions.StatusDraft, p.Status)
	assert.Equal(t, "u1", p.AuthorID)

	status := "bogus"
	_, err = svc.Update(ctx, p.ID, &UpdatePageDTO{Status: &status})
	assert.ErrorIs(t, err, errInvalidStatus)

	require.NoError(t, svc.SetMeta(ctx, p.ID, map[string]string{versions.MetaVersion: ""}))
	require.NoError(t, svc.Delete(ctx, p.ID))

	assert.Equal(t, []call{{p.ID, false}, {p.ID, false}, {p.ID, true}}, calls)

	pages, pag, err := svc.List(ctx, pagination.New(1, 10), nil, "")
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Zero(t, pag.Total)
}
