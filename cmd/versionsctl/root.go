package main

import (
	"context"
	"fmt"

	"github.com/nine3/versions/internal/app"
	"github.com/nine3/versions/internal/config"
	"github.com/nine3/versions/internal/database"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/actions"
	pkgredis "github.com/nine3/versions/internal/pkg/redis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:          "versionsctl",
		Short:        "versionsctl - maintain versioned page trees",
		Long:         "versionsctl runs page tree operations against the versions database without the HTTP server.",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath, "Path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every step")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newTreeCmd(opts))
	cmd.AddCommand(newCloneCmd(opts))
	cmd.AddCommand(newPublishCmd(opts))
	cmd.AddCommand(newReplaceCmd(opts))
	cmd.AddCommand(newResolveCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	return cmd
}

// session is one CLI invocation's open connections.
type session struct {
	cfg      *config.AppConfig
	db       *gorm.DB
	redis    *pkgredis.Client
	logger   *zap.Logger
	services *app.Services
}

func (o *globalOptions) logger() *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	if !o.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (o *globalOptions) open() (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	logger := o.logger()

	db, err := database.Connect(cfg, false, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// The CLI works without redis; the site tree is then rebuilt on every read
	// and the public cache has to expire on its own.
	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, caches will not be invalidated", zap.Error(err))
		rc = nil
	}

	services, err := app.Build(cfg, db, rc, logger)
	if err != nil {
		closeSession(db, rc)
		return nil, err
	}
	return &session{cfg: cfg, db: db, redis: rc, logger: logger, services: services}, nil
}

func (s *session) Close() {
	_ = s.logger.Sync()
	closeSession(s.db, s.redis)
}

func closeSession(db *gorm.DB, rc *pkgredis.Client) {
	if rc != nil {
		_ = rc.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// settle applies the invalidations an operation reported before the process exits.
func (s *session) settle(ctx context.Context, affected actions.Affected) {
	for _, scope := range affected {
		switch scope {
		case versions.ScopeSiteTree:
			if err := s.services.Tree.Invalidate(ctx); err != nil {
				s.logger.Warn("invalidate site tree", zap.Error(err))
			}
		case versions.ScopePublicCache:
			if s.services.Purger == nil {
				continue
			}
			if err := s.services.Purger.Purge(ctx); err != nil {
				s.logger.Warn("purge public cache", zap.Error(err))
			}
		}
	}
}
