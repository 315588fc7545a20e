package database

import (
	"fmt"
	"time"

	"github.com/nine3/versions/internal/config"
	"github.com/nine3/versions/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	slowQuery       = 500 * time.Millisecond
)

// Connect opens the page database. migrate runs Migrate before returning.
func Connect(cfg *config.AppConfig, migrate bool, log *zap.Logger) (*gorm.DB, error) {
	db, err := open(cfg, log)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := Migrate(db); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// EnsureSchema migrates over a short-lived connection.
func EnsureSchema(cfg *config.AppConfig, log *zap.Logger) error {
	db, err := Connect(cfg, true, log)
	if err != nil {
		return err
	}
	closeDB(db)
	return nil
}

func open(cfg *config.AppConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: gormLogger(cfg, log),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// zapWriter routes gorm's query log into the application logger.
type zapWriter struct{ log *zap.SugaredLogger }

func (w zapWriter) Printf(format string, args ...interface{}) { w.log.Infof(format, args...) }

func gormLogger(cfg *config.AppConfig, log *zap.Logger) logger.Interface {
	level := logger.Warn
	if cfg.IsDev() {
		level = logger.Info
	}
	if log == nil {
		return logger.Default.LogMode(level)
	}
	return logger.New(zapWriter{log: log.Named("gorm").Sugar()}, logger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates the page and metadata tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.PageModel{}, &models.PageMetaModel{}); err != nil {
		return err
	}
	if db.Dialector.Name() != "mysql" {
		return nil
	}
	if err := db.Exec("ALTER TABLE `page_meta` MODIFY COLUMN `meta_value` LONGTEXT NULL").Error; err != nil {
		return err
	}
	// Prefix index keeps exact new_url and custom_url lookups indexed.
	if db.Migrator().HasIndex(&models.PageMetaModel{}, "idx_page_meta_value") {
		return nil
	}
	return db.Exec("CREATE INDEX `idx_page_meta_value` ON `page_meta` (`meta_key`, `meta_value`(191))").Error
}
