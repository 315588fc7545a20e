package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "http://localhost:2333", cfg.Site.URL)
	assert.Equal(t, "http://localhost:2333/admin", cfg.Site.AdminURL)
	assert.Equal(t, defaultTreeKey, cfg.Cache.TreeKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Contains(t, cfg.DSN, "tcp(127.0.0.1:3306)/nine3_versions")
	assert.Contains(t, cfg.DSN, "parseTime=true")
	assert.Empty(t, cfg.LegacyTablePath())
}

func TestParse_Sections(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
port: 8080
env: production
database:
  host: db
  user: cms
  password: secret
  name: docs
redis:
  host: cache
  db: 2
site:
  url: https://docs.example.com/
  home_page_id: 12
  admin_url: https://admin.example.com/
legacy:
  path: /etc/nine3/legacy.yml
cache:
  http_ttl_seconds: 30
allowed_origins: [" *.example.com ", ""]
tz: UTC
`))
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, 8080, cfg.Port)
	dsn, err := mysql.ParseDSN(cfg.DSN)
	require.NoError(t, err)
	assert.Equal(t, "cms", dsn.User)
	assert.Equal(t, "secret", dsn.Passwd)
	assert.Equal(t, "db:3306", dsn.Addr)
	assert.Equal(t, "docs", dsn.DBName)
	assert.True(t, dsn.ParseTime)
	assert.Equal(t, time.Local, dsn.Loc)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, "https://docs.example.com", cfg.Site.URL)
	assert.Equal(t, int64(12), cfg.Site.HomePageID)
	assert.Equal(t, "https://admin.example.com", cfg.Site.AdminURL)
	assert.Equal(t, "/etc/nine3/legacy.yml", cfg.LegacyTablePath())
	assert.Equal(t, []string{"*.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, float64(30), cfg.HTTPCacheTTL().Seconds())
}

func TestParse_FlatAliases(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
site_url: https://example.com
home_page_id: 3
redis_url: cache:6380/1
dsn: "u:p@tcp(h:3307)/x"
`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.Site.URL)
	assert.Equal(t, int64(3), cfg.Site.HomePageID)
	assert.Equal(t, "redis://cache:6380/1", cfg.RedisURL)
	assert.Equal(t, "u:p@tcp(h:3307)/x", cfg.DSN)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "nope: 1",
		"bad port":        "port: 70000",
		"bad site url":    "site: {url: example.com}",
		"bad admin url":   "site: {admin_url: 'ftp://x'}",
		"negative home":   "site: {home_page_id: -1}",
		"bad dsn":         "dsn: 'not a dsn'",
		"negative ttl":    "cache: {http_ttl_seconds: -5}",
		"negative redisd": "redis: {db: -1}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	doc := "port: 9000\nlegacy:\n  path: legacy.yml\npaths:\n  logs: var/log\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, filepath.Join(dir, "legacy.yml"), cfg.LegacyTablePath())
	assert.Equal(t, filepath.Join(dir, "var", "log"), cfg.LogDir())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
