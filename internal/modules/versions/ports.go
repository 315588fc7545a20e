package versions

import (
	"context"
	"time"
)

// PageStore is the content store the engine runs on top of.
//
// Children and Descendants return pages of every status ordered by explicit
// order, then title. Descendants is a pre-order walk: every page comes after
// its parent. Get returns (nil, nil) when the id does not exist.
type PageStore interface {
	Get(ctx context.Context, id int64) (*Page, error)
	Children(ctx context.Context, parentID int64) ([]Page, error)
	Descendants(ctx context.Context, rootID int64) ([]Page, error)
	Ancestors(ctx context.Context, id int64) ([]int64, error)
	Roots(ctx context.Context) ([]Page, error)
	FindByPath(ctx context.Context, path string) (*Page, error)
	Create(ctx context.Context, p *Page) (int64, error)
	Update(ctx context.Context, id int64, u PageUpdate) error
	Delete(ctx context.Context, id int64) error
	ReplaceText(ctx context.Context, ids []int64, from, to string) (int64, error)
	PublishDrafts(ctx context.Context, ids []int64) (int64, error)
}

// MetaStore is the per-page key/value store. A missing key reads as "".
type MetaStore interface {
	GetMeta(ctx context.Context, id int64, key string) (string, error)
	AllMeta(ctx context.Context, id int64) (map[string]string, error)
	SetMeta(ctx context.Context, id int64, key, value string) error
	DeleteMeta(ctx context.Context, id int64, key string) error
	// FindByMeta returns the lowest live page id carrying key=value, or 0.
	FindByMeta(ctx context.Context, key, value string) (int64, error)
	ReplaceMeta(ctx context.Context, ids []int64, from, to string) (int64, error)
}

// Cache is the process-wide key/value cache. Get returns ("", nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Purger clears rendered public pages held by an external caching layer.
type Purger interface {
	Purge(ctx context.Context) error
}

// PurgerFunc adapts a function to Purger.
type PurgerFunc func(ctx context.Context) error

func (f PurgerFunc) Purge(ctx context.Context) error { return f(ctx) }

// Site describes the public site the links are generated for.
type Site struct {
	// URL is the home URL without a trailing slash, e.g. https://example.com.
	URL string
	// HomeID is the page acting as the invisible root of the site, 0 if none.
	HomeID int64
	// AdminURL is the base of editor links.
	AdminURL string
}

// Deps is the context object handed to every component constructor.
type Deps struct {
	Pages PageStore
	Meta  MetaStore
	Cache Cache
	Site  Site
}
