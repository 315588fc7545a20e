package config

import (
	"bytes"
	"fmt"
	"io"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the YAML config at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		cfg.configDir = filepath.Dir(abs)
	}
	return cfg, nil
}

// Parse decodes a YAML config. Unknown keys are rejected.
func Parse(r io.Reader) (*AppConfig, error) {
	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse: %w", err)
	}

	applyRawAppConfig(&cfg, raw)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if _, err := mysql.ParseDSN(c.DSN); err != nil {
		return fmt.Errorf("invalid database dsn: %w", err)
	}
	if err := checkAbsoluteURL("site.url", c.Site.URL); err != nil {
		return err
	}
	if c.Site.AdminURL != "" {
		if err := checkAbsoluteURL("site.admin_url", c.Site.AdminURL); err != nil {
			return err
		}
	}
	if c.Site.HomePageID < 0 {
		return fmt.Errorf("invalid site.home_page_id %d, expected >= 0", c.Site.HomePageID)
	}
	if c.Cache.HTTPTTLSeconds < 0 {
		return fmt.Errorf("invalid cache.http_ttl_seconds %d, expected >= 0", c.Cache.HTTPTTLSeconds)
	}
	return nil
}

func checkAbsoluteURL(field, raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q, expected an absolute http(s) URL", field, raw)
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Cache: CacheConfig{
			TreeKey:        defaultTreeKey,
			HTTPTTLSeconds: defaultHTTPTTL,
			RateLimit:      defaultRateLimit,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

// pick assigns the last non-blank value to dst. Later values are the
// flat aliases and win over the nested section.
func pick(dst *string, values ...string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
}

func pickNonZero[T int | int64](dst *T, values ...T) {
	for _, v := range values {
		if v != 0 {
			*dst = v
		}
	}
}

func pickSet[T any](dst *T, values ...*T) {
	for _, v := range values {
		if v != nil {
			*dst = *v
		}
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	pickNonZero(&cfg.Port, raw.Port)
	pick(&cfg.Env, raw.Env)
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	pick(&cfg.Site.URL, raw.Site.URL, raw.SiteURL)
	pick(&cfg.Site.AdminURL, raw.Site.AdminURL, raw.AdminURL)
	// Nested keys win over the flat alias here.
	pickSet(&cfg.Site.HomePageID, raw.HomePageID, raw.Site.HomeID, raw.Site.HomePageID)
	pick(&cfg.Legacy.Path, raw.Legacy.Path, raw.LegacyPath)

	pick(&cfg.Cache.TreeKey, raw.Cache.TreeKey)
	pickNonZero(&cfg.Cache.HTTPTTLSeconds, raw.Cache.HTTPTTLSeconds)
	pickSet(&cfg.Cache.DisableHTTP, raw.Cache.DisableHTTP)
	pickNonZero(&cfg.Cache.RateLimit, raw.Cache.RateLimit)

	pick(&cfg.Paths.Logs, raw.Paths.Logs, raw.LogDir)
	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}
	pick(&cfg.JWTSecret, raw.JWTSecret)
	pick(&cfg.Timezone, raw.Timezone, raw.TZ)

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Site = normalizeSite(cfg.Site, cfg.Port)
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
}

func applyRawDatabaseConfig(cfg DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	db := raw.Database
	pick(&cfg.DSN, db.DSN, db.URL, raw.DSN, raw.DatabaseURL)
	pick(&cfg.Host, db.Host, raw.DBHost)
	pickNonZero(&cfg.Port, db.Port, raw.DBPort)
	pick(&cfg.User, db.User, db.Username, raw.DBUser)
	pick(&cfg.Password, db.Password, raw.DBPassword)
	pick(&cfg.Name, db.Name, db.DBName, raw.DBName)
	pick(&cfg.Charset, db.Charset)
	pickSet(&cfg.ParseTime, db.ParseTime)
	pick(&cfg.Loc, db.Loc)
	if db.Params != nil {
		cfg.Params = db.Params
	}
	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(cfg RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	rd := raw.Redis
	pick(&cfg.URL, rd.URL, raw.RedisURL)
	pick(&cfg.Host, rd.Host, raw.RedisHost)
	pickNonZero(&cfg.Port, rd.Port, raw.RedisPort)
	pick(&cfg.Username, rd.Username)
	pick(&cfg.Password, rd.Password, raw.RedisPassword)
	pickSet(&cfg.DB, rd.DB, raw.RedisDB)
	pickSet(&cfg.TLS, rd.TLS)
	pick(&cfg.Scheme, rd.Scheme)
	if rd.Params != nil {
		cfg.Params = rd.Params
	}
	return normalizeRedisConfig(cfg)
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return resolveRuntimePath("", "", "logs")
	}
	return resolveRuntimePath(c.configDir, c.Paths.Logs, "logs")
}

// LegacyTablePath resolves the legacy table file, "" when none is configured.
func (c *AppConfig) LegacyTablePath() string {
	if c == nil || c.Legacy.Path == "" {
		return ""
	}
	return resolveRuntimePath(c.configDir, c.Legacy.Path, "")
}

// HTTPCacheTTL is how long rendered public responses stay cached.
func (c *AppConfig) HTTPCacheTTL() time.Duration {
	return time.Duration(c.Cache.HTTPTTLSeconds) * time.Second
}
