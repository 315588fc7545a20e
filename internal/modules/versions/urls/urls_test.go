package urls

import (
	"context"
	"testing"

	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/versionstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteURL = "https://example.com"

type legacyMap map[string]string

func (m legacyMap) Lookup(path string) (string, bool) {
	id, ok := m[path]
	return id, ok
}

type fixture struct {
	store    *versionstest.Store
	linker   *Linker
	resolver *Resolver
	deps     versions.Deps
}

// newFixture seeds:
//
//	1 home (site home)
//	└── 2 product
//	    ├── 3 v1-0   version=v1.0
//	    │   └── 4 setup
//	    └── 5 v2-0   version=v2.0 latest_version=1
//	        └── 6 setup
//	7 about
func newFixture(t *testing.T, legacy LegacyTable) *fixture {
	t.Helper()
	ctx := context.Background()
	store := versionstest.NewStore()
	store.Add(versions.Page{ID: 1, Title: "Home", Slug: "home"})
	store.Add(versions.Page{ID: 2, ParentID: 1, Title: "Product", Slug: "product"})
	store.Add(versions.Page{ID: 3, ParentID: 2, Title: "Product v1.0", Slug: "v1-0", Order: 0})
	store.Add(versions.Page{ID: 4, ParentID: 3, Title: "Setup", Slug: "setup", Text: "v1 setup"})
	store.Add(versions.Page{ID: 5, ParentID: 2, Title: "Product v2.0", Slug: "v2-0", Order: 1})
	store.Add(versions.Page{ID: 6, ParentID: 5, Title: "Setup", Slug: "setup", Text: "**bold** <em>x</em>"})
	store.Add(versions.Page{ID: 7, Title: "About", Slug: "about"})
	require.NoError(t, store.SetMeta(ctx, 3, versions.MetaVersion, "v1.0"))
	require.NoError(t, store.SetMeta(ctx, 5, versions.MetaVersion, "v2.0"))
	require.NoError(t, store.SetMeta(ctx, 5, versions.MetaLatestVersion, "1"))

	deps := versions.Deps{
		Pages: store,
		Meta:  store,
		Site:  versions.Site{URL: siteURL + "/", HomeID: 1},
	}
	linker := NewLinker(deps, nil)
	f := &fixture{
		store:    store,
		linker:   linker,
		resolver: NewResolver(deps, linker, legacy, nil),
		deps:     deps,
	}
	for id := int64(1); id <= 7; id++ {
		require.NoError(t, linker.Refresh(ctx, id))
	}
	return f
}

func TestCompute_VersionSegmentMovesToEnd(t *testing.T) {
	f := newFixture(t, nil)

	link, err := f.linker.Compute(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, link.Managed)
	assert.Equal(t, siteURL+"/product/setup/v1-0/", link.New)
	assert.Equal(t, siteURL+"/home/product/v1-0/setup/", link.Old)
	assert.Equal(t, link.New, link.URL)
}

func TestCompute_LatestUnderHome(t *testing.T) {
	f := newFixture(t, nil)

	link, err := f.linker.Compute(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/product/setup/latest/", link.New)

	meta := f.store.Meta(6)
	assert.Equal(t, siteURL+"/product/setup/latest/", meta[versions.MetaNewURL])
	assert.Equal(t, siteURL+"/home/product/v2-0/setup/", meta[versions.MetaOldURL])
}

func TestCompute_HomeDescendantWithoutVersion(t *testing.T) {
	f := newFixture(t, nil)

	link, err := f.linker.Compute(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, link.Managed)
	assert.Equal(t, siteURL+"/product/", link.New)
	assert.Equal(t, siteURL+"/home/product/", link.Old)
}

func TestRefresh_UnmanagedPageLosesStoredLinks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SetMeta(ctx, 7, versions.MetaNewURL, "stale"))
	require.NoError(t, f.store.SetMeta(ctx, 7, versions.MetaOldURL, "stale"))

	require.NoError(t, f.linker.Refresh(ctx, 7))
	meta := f.store.Meta(7)
	assert.NotContains(t, meta, versions.MetaNewURL)
	assert.NotContains(t, meta, versions.MetaOldURL)

	home := f.store.Meta(1)
	assert.NotContains(t, home, versions.MetaNewURL)
}

func TestRefresh_SkipsPlaceholderLinks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.store.Add(versions.Page{ID: 8, ParentID: 2})

	link, err := f.linker.Compute(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/product/"+Placeholder+"/", link.New)

	require.NoError(t, f.linker.Refresh(ctx, id))
	meta := f.store.Meta(id)
	assert.NotContains(t, meta, versions.MetaNewURL)
	assert.NotContains(t, meta, versions.MetaOldURL)
}

func TestCustomURLOverridesLink(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.linker.SetCustomURL(ctx, 7, "/company/about/"))
	assert.Equal(t, "company/about", f.store.Meta(7)[versions.MetaCustomURL])

	link, err := f.linker.Permalink(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/company/about/", link)

	err = f.linker.SetCustomURL(ctx, 7, "https://evil.test/x")
	assert.Equal(t, versions.KindValidation, versions.KindOf(err))

	require.NoError(t, f.linker.SetCustomURL(ctx, 7, ""))
	assert.NotContains(t, f.store.Meta(7), versions.MetaCustomURL)
}

func TestResolve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.linker.SetCustomURL(ctx, 7, "company/about"))

	cases := []struct {
		name    string
		path    string
		preview int64
		want    Decision
	}{
		{"preview wins", "/product/setup/latest/", 4, Decision{Kind: ByID, ID: 4}},
		{"site root", "/", 0, Decision{Kind: Pass}},
		{"custom url", "/company/about", 0, Decision{Kind: ByID, ID: 7}},
		{"latest via old path", "/product/setup/latest/", 0, Decision{Kind: ByPath, ID: 6, Path: "home/product/v2-0/setup"}},
		{"versioned without slash", "/product/setup/v1-0", 0, Decision{Kind: ByPath, ID: 4, Path: "home/product/v1-0/setup"}},
		{"unknown version falls to latest", "/product/setup/v9-0/", 0, Decision{Kind: ByPath, ID: 6, Path: "home/product/v2-0/setup"}},
		{"no match", "/nothing/here/", 0, Decision{Kind: Pass, Path: "nothing/here"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.resolver.Resolve(ctx, tc.path, tc.preview)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_OldPathFindsSamePage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d, err := f.resolver.Resolve(ctx, "/product/setup/latest/", 0)
	require.NoError(t, err)
	page, err := f.store.FindByPath(ctx, d.Path)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, int64(6), page.ID)
}

func TestRecover404_LegacyTable(t *testing.T) {
	f := newFixture(t, legacyMap{
		"old/setup-guide":  "123",
		"old/latest/setup": "123",
		"old/missing-page": "999",
	})
	ctx := context.Background()
	require.NoError(t, f.store.SetMeta(ctx, 4, versions.MetaOriginalID, "123"))

	target, err := f.resolver.Recover404(ctx, "/old/setup-guide/")
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/product/setup/v1-0/", target)

	target, err = f.resolver.Recover404(ctx, "/old/latest/setup")
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/product/setup/latest/", target)

	target, err = f.resolver.Recover404(ctx, "/old/missing-page")
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestRecover404_TriesLatest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	target, err := f.resolver.Recover404(ctx, "/product/setup")
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/product/setup/latest/", target)

	target, err = f.resolver.Recover404(ctx, "/latest/nowhere")
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestRedirectTarget(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SetMeta(ctx, 7, versions.MetaRedirectToURL, `{"url":"https://elsewhere.test/"}`))

	target, err := f.resolver.RedirectTarget(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.test/", target)

	target, err = f.resolver.RedirectTarget(ctx, 7, true)
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestListVersions_SiblingsNewestFirst(t *testing.T) {
	f := newFixture(t, nil)

	list, err := f.resolver.ListVersions(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []VersionLink{
		{Version: "v2.0", URL: siteURL + "/product/setup/latest/"},
		{Version: "v1.0", URL: siteURL + "/product/setup/v1-0/"},
	}, list)
}

func TestListVersions_SelfHostingChildren(t *testing.T) {
	f := newFixture(t, nil)

	list, err := f.resolver.ListVersions(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []VersionLink{
		{Version: "v2.0", URL: siteURL + "/product/latest/"},
		{Version: "v1.0", URL: siteURL + "/product/v1-0/"},
	}, list)

	none, err := f.resolver.ListVersions(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSortVersions_Semantic(t *testing.T) {
	got := sortVersions(map[string]string{
		"v1.9":  "a",
		"v1.10": "b",
		"v2-0":  "c",
		"beta":  "d",
	})
	var order []string
	for _, v := range got {
		order = append(order, v.Version)
	}
	assert.Equal(t, []string{"v2-0", "v1.10", "v1.9", "beta"}, order)
}
