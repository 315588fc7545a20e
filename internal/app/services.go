package app

import (
	"context"
	"fmt"

	"github.com/nine3/versions/internal/config"
	"github.com/nine3/versions/internal/middleware"
	"github.com/nine3/versions/internal/modules/content/page"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/actions"
	"github.com/nine3/versions/internal/modules/versions/clone"
	"github.com/nine3/versions/internal/modules/versions/legacy"
	"github.com/nine3/versions/internal/modules/versions/tree"
	"github.com/nine3/versions/internal/modules/versions/urls"
	pkgredis "github.com/nine3/versions/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services is the explicitly constructed component graph shared by the
// HTTP server and the CLI.
type Services struct {
	Deps       versions.Deps
	Store      *page.Store
	Pages      *page.Service
	Tree       *tree.Builder
	Linker     *urls.Linker
	Resolver   *urls.Resolver
	Engine     *actions.Engine
	Dispatcher *actions.Dispatcher
	Legacy     *legacy.Table
	Purger     versions.Purger
}

// Build wires every component. rc may be nil, in which case the site tree
// is never cached and nothing is purged.
func Build(cfg *config.AppConfig, db *gorm.DB, rc *pkgredis.Client, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := page.NewStore(db)
	deps := versions.Deps{
		Pages: store,
		Meta:  store,
		Site: versions.Site{
			URL:      cfg.Site.URL,
			HomeID:   cfg.Site.HomePageID,
			AdminURL: cfg.Site.AdminURL,
		},
	}
	var purger versions.Purger
	if rc != nil {
		deps.Cache = rc
		purger = httpCachePurger(rc, logger)
	}

	table := legacy.Empty()
	if path := cfg.LegacyTablePath(); path != "" {
		loaded, err := legacy.Load(path)
		if err != nil {
			return nil, fmt.Errorf("legacy table: %w", err)
		}
		table = loaded
		logger.Info("legacy path table loaded", zap.String("path", path), zap.Int("entries", table.Len()))
	}

	tb := tree.NewBuilder(deps, cfg.Cache.TreeKey, logger.Named("tree"))
	linker := urls.NewLinker(deps, logger.Named("urls"))
	resolver := urls.NewResolver(deps, linker, table, logger.Named("urls"))
	dup := clone.NewDuplicator(deps, logger.Named("clone"))
	engine := actions.NewEngine(deps, tb, dup, linker, logger.Named("actions"))
	dispatcher := actions.NewDispatcher(engine, tb, purger, deps.Site, logger.Named("actions"))

	pages := page.NewService(db, store)
	s := &Services{
		Deps:       deps,
		Store:      store,
		Pages:      pages,
		Tree:       tb,
		Linker:     linker,
		Resolver:   resolver,
		Engine:     engine,
		Dispatcher: dispatcher,
		Legacy:     table,
		Purger:     purger,
	}
	pages.OnSave(s.pageSaved(logger.Named("pages")))
	return s, nil
}

// pageSaved keeps links and caches in step with editor writes: the saved
// page and its subtree get fresh links, then the snapshot and public cache go.
func (s *Services) pageSaved(logger *zap.Logger) page.SaveHook {
	return func(ctx context.Context, id int64, deleted bool) {
		if !deleted {
			ids, err := s.Tree.Subtree(ctx, id)
			if err != nil {
				logger.Warn("load subtree for link refresh", zap.Int64("page_id", id), zap.Error(err))
				ids = []int64{id}
			}
			for _, pid := range ids {
				if err := s.Linker.Refresh(ctx, pid); err != nil {
					logger.Warn("refresh page link", zap.Int64("page_id", pid), zap.Error(err))
				}
			}
		}
		if err := s.Tree.Invalidate(ctx); err != nil {
			logger.Warn("invalidate site tree", zap.Error(err))
		}
		if s.Purger != nil {
			go func(ctx context.Context) {
				if err := s.Purger.Purge(ctx); err != nil {
					logger.Warn("purge public cache", zap.Error(err))
				}
			}(context.WithoutCancel(ctx))
		}
	}
}

func httpCachePurger(rc *pkgredis.Client, logger *zap.Logger) versions.Purger {
	return versions.PurgerFunc(func(ctx context.Context) error {
		n, err := middleware.PurgeHTTPCache(ctx, rc.Raw())
		if err != nil {
			return err
		}
		logger.Debug("public cache purged", zap.Int64("keys", n))
		return nil
	})
}
