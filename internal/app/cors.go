package app

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/nine3/versions/internal/config"
)

// corsConfig lets the admin UI and the configured origins call the API.
// Development mode accepts any origin.
func corsConfig(cfg *config.AppConfig) cors.Config {
	allowed := originHosts(cfg)
	return cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Location", "x-nine3v-cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(origin string) bool {
			if cfg.IsDev() {
				return true
			}
			return originAllowed(allowed, origin)
		},
	}
}

// originHosts collects site, admin and extra origins as host patterns.
func originHosts(cfg *config.AppConfig) []string {
	var out []string
	for _, raw := range []string{cfg.Site.URL, cfg.Site.AdminURL} {
		if host := originHost(raw); host != "" {
			out = append(out, host)
		}
	}
	for _, pattern := range cfg.AllowedOrigins {
		out = append(out, originHost(pattern))
	}
	return out
}

func originHost(origin string) string {
	if !strings.Contains(origin, "://") {
		return strings.ToLower(strings.TrimSpace(origin))
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}

// originAllowed supports "*.example.com" and "localhost:*" style patterns.
func originAllowed(patterns []string, origin string) bool {
	host := originHost(origin)
	if host == "" {
		return false
	}
	for _, pattern := range patterns {
		switch {
		case pattern == "":
		case pattern == "*" || pattern == host:
			return true
		case strings.HasPrefix(pattern, "*."):
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
		case strings.HasSuffix(pattern, ":*"):
			if strings.HasPrefix(host, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		}
	}
	return false
}
