package tree

import (
	"context"
	"testing"

	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/versionstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed builds:
//
//	1 Docs
//	├── 2 Guide (order 1)
//	│   └── 4 Install
//	└── 3 API (order 0)
//	5 Blog
func seed(t *testing.T) (*versionstest.Store, *Builder, *versionstest.Cache) {
	t.Helper()
	store := versionstest.NewStore()
	store.Add(versions.Page{ID: 1, Title: "Docs"})
	store.Add(versions.Page{ID: 2, ParentID: 1, Title: "Guide", Order: 1})
	store.Add(versions.Page{ID: 3, ParentID: 1, Title: "API", Order: 0, Status: versions.StatusDraft})
	store.Add(versions.Page{ID: 4, ParentID: 2, Title: "Install", Status: versions.StatusPrivate})
	store.Add(versions.Page{ID: 5, Title: "Blog"})
	cache := versionstest.NewCache()
	b := NewBuilder(versions.Deps{Pages: store, Meta: store, Cache: cache}, "", nil)
	return store, b, cache
}

func ids(nodes []*versions.Node) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestHierarchy_NestsChildrenInSortOrder(t *testing.T) {
	_, b, _ := seed(t)

	root, err := b.Hierarchy(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, root)

	require.Len(t, root.Children, 2)
	assert.Equal(t, int64(3), root.Children[0].ID)
	assert.Equal(t, int64(2), root.Children[1].ID)
	require.Len(t, root.Children[1].Children, 1)
	assert.Equal(t, int64(4), root.Children[1].Children[0].ID)
	assert.Empty(t, root.Children[0].Children)
	assert.Equal(t, versions.StatusPrivate, root.Children[1].Children[0].Status)
}

func TestHierarchy_MissingRootIsEmpty(t *testing.T) {
	_, b, _ := seed(t)

	root, err := b.Hierarchy(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, root)
}

func TestHierarchy_FlattenPreservesIDsAndParents(t *testing.T) {
	store, b, _ := seed(t)

	root, err := b.Hierarchy(context.Background(), 1)
	require.NoError(t, err)

	flat := Flatten(root)
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(flat))
	for _, node := range flat[1:] {
		p, ok := store.Page(node.ID)
		require.True(t, ok)
		assert.Equal(t, p.ParentID, node.ParentID)
	}
}

func TestFlat_AnnotatesDirectChildren(t *testing.T) {
	_, b, _ := seed(t)

	flat, err := b.Flat(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 2, 4}, ids(flat))
	assert.Equal(t, []int64{3, 2}, flat[0].ChildIDs)
	assert.Empty(t, flat[1].ChildIDs)
	assert.Equal(t, []int64{4}, flat[2].ChildIDs)
	assert.Empty(t, flat[3].ChildIDs)
}

func TestSubtree_IncludesEveryStatus(t *testing.T) {
	_, b, _ := seed(t)

	got, err := b.Subtree(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2, 4}, got)
}

func TestAssemble_DoesNotAliasInput(t *testing.T) {
	records := []versions.Page{
		{ID: 2, ParentID: 1, Title: "b"},
		{ID: 3, ParentID: 2, Title: "c"},
		{ID: 9, ParentID: 42, Title: "stray"},
	}
	root := Assemble(versions.Page{ID: 1, Title: "a"}, records)
	root.Children[0].Title = "changed"

	assert.Equal(t, "b", records[0].Title)
	assert.Equal(t, []int64{1, 2, 3}, ids(Flatten(root)))
}

func TestSite_CachesUntilInvalidated(t *testing.T) {
	store, b, cache := seed(t)
	ctx := context.Background()

	site, err := b.Site(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 1}, ids(site))
	assert.True(t, cache.Has(DefaultCacheKey))

	store.Add(versions.Page{ID: 6, Title: "Archive"})
	stale, err := b.Site(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	require.NoError(t, b.Invalidate(ctx))
	fresh, err := b.Site(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 5, 1}, ids(fresh))
}

func TestDescendants_CycleIsAnError(t *testing.T) {
	store := versionstest.NewStore()
	store.Add(versions.Page{ID: 1, ParentID: 2, Title: "a"})
	store.Add(versions.Page{ID: 2, ParentID: 1, Title: "b"})
	b := NewBuilder(versions.Deps{Pages: store, Meta: store}, "", nil)

	_, err := b.Hierarchy(context.Background(), 1)
	require.ErrorIs(t, err, versions.ErrCyclicHierarchy)
}
