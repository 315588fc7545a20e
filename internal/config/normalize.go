package config

import (
	"fmt"
	"strings"
)

// trim strips surrounding whitespace from every field in place.
func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// orDefault returns value, or def when value is empty.
func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	trim(&cfg.DSN, &cfg.URL, &cfg.Host, &cfg.User, &cfg.Username,
		&cfg.Password, &cfg.Name, &cfg.DBName, &cfg.Charset, &cfg.Loc)

	cfg.User = orDefault(orDefault(cfg.User, cfg.Username), defaultDBUser)
	cfg.Name = orDefault(orDefault(cfg.Name, cfg.DBName), defaultDBName)
	cfg.Host = orDefault(cfg.Host, defaultDBHost)
	cfg.Password = orDefault(cfg.Password, defaultDBPassword)
	cfg.Charset = orDefault(cfg.Charset, defaultDBCharset)
	cfg.Loc = orDefault(cfg.Loc, defaultDBLoc)
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
	}
	cfg.Params = copyStringMap(cfg.Params)
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	trim(&cfg.URL, &cfg.Host, &cfg.Username, &cfg.Password, &cfg.Scheme)
	cfg.Scheme = strings.ToLower(cfg.Scheme)

	if cfg.URL != "" && !strings.Contains(cfg.URL, "://") {
		cfg.URL = "redis://" + cfg.URL
	}
	if cfg.URL == "" {
		cfg.Host = orDefault(cfg.Host, defaultRedisHost)
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "redis"
		if cfg.TLS {
			cfg.Scheme = "rediss"
		}
	}
	cfg.Params = copyStringMap(cfg.Params)
	return cfg
}

// normalizeSite drops trailing slashes; links are always built as
// site URL + "/" + path. Without a site URL the local listener is used.
func normalizeSite(site SiteConfig, port int) SiteConfig {
	site.URL = strings.TrimRight(strings.TrimSpace(site.URL), "/")
	site.URL = orDefault(site.URL, fmt.Sprintf("http://localhost:%d", port))
	site.AdminURL = strings.TrimRight(strings.TrimSpace(site.AdminURL), "/")
	site.AdminURL = orDefault(site.AdminURL, site.URL+"/admin")
	return site
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	return orDefault(strings.ToLower(strings.TrimSpace(env)), defaultEnv)
}

func normalizeRuntimePaths(paths RuntimePathsConfig) RuntimePathsConfig {
	trim(&paths.Logs)
	return paths
}

// copyStringMap drops blank keys and values; nil stays nil.
func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
