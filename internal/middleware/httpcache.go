package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// PageCachePrefix namespaces rendered public responses in redis.
	PageCachePrefix         = "nine3v-page-cache:"
	pageCacheHeader         = "x-nine3v-cache"
	defaultHTTPCacheTTL     = 15 * time.Second
	defaultHTTPCacheMaxBody = 1 << 20
	staleWhileRevalidate    = 60
)

// HTTPCacheOptions tunes the public response cache.
type HTTPCacheOptions struct {
	TTL             time.Duration
	EnableCDNHeader bool
	Disable         bool
	SkipPaths       []string
	MaxBodyBytes    int
}

// cachedPage is one stored public response. Resolver redirects are kept
// along with rendered pages, so Location travels with the body.
type cachedPage struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Location    string `json:"location,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type cacheBodyWriter struct {
	gin.ResponseWriter
	body     []byte
	limit    int
	overflow bool
}

func (w *cacheBodyWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) capture(data []byte) {
	if w.overflow {
		return
	}
	if len(w.body)+len(data) > w.limit {
		w.overflow = true
		w.body = nil
		return
	}
	w.body = append(w.body, data...)
}

// HTTPCache serves anonymous GET requests for public pages from redis.
// Editors, previews and cache busters always reach the resolver.
func HTTPCache(rdb *redis.Client, opts HTTPCacheOptions) gin.HandlerFunc {
	if opts.TTL <= 0 {
		opts.TTL = defaultHTTPCacheTTL
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultHTTPCacheMaxBody
	}
	ttlSeconds := int(opts.TTL / time.Second)

	return func(c *gin.Context) {
		if opts.Disable || rdb == nil || c.Request.Method != http.MethodGet ||
			shouldSkipCachePath(c.Request.URL.Path, opts.SkipPaths) || hasBypassQuery(c) {
			c.Next()
			return
		}
		if IsAuthenticated(c) {
			c.Next()
			setPrivateCacheHeader(c.Writer)
			return
		}

		ctx := c.Request.Context()
		key := pageCacheKey(c.Request)
		if page, ok := readCachedPage(ctx, rdb, key); ok {
			c.Header(pageCacheHeader, "hit")
			setPublicCacheHeader(c.Writer, ttlSeconds, opts.EnableCDNHeader)
			if page.Location != "" {
				c.Header("Location", page.Location)
			}
			c.Data(page.Status, page.ContentType, page.Body)
			c.Abort()
			return
		}

		writer := &cacheBodyWriter{ResponseWriter: c.Writer, limit: opts.MaxBodyBytes}
		c.Writer = writer
		c.Header(pageCacheHeader, "miss")
		c.Next()

		status := c.Writer.Status()
		if !isCacheableResponse(status, c.Writer.Header()) || writer.overflow {
			return
		}
		page := cachedPage{
			Status:      status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Location:    c.Writer.Header().Get("Location"),
			Body:        writer.body,
		}
		raw, err := json.Marshal(page)
		if err != nil {
			return
		}
		_ = rdb.Set(ctx, key, raw, opts.TTL).Err()
	}
}

// pageCacheKey separates hosts so one redis can front several sites.
func pageCacheKey(r *http.Request) string {
	return PageCachePrefix + strings.ToLower(r.Host) + r.URL.RequestURI()
}

// PurgeHTTPCache drops every cached public response and reports how many went.
func PurgeHTTPCache(ctx context.Context, rdb *redis.Client) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	var deleted int64
	iter := rdb.Scan(ctx, 0, PageCachePrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rdb.Del(ctx, batch...).Result()
		deleted += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

func readCachedPage(ctx context.Context, rdb *redis.Client, key string) (cachedPage, bool) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return cachedPage{}, false
	}
	var page cachedPage
	if err := json.Unmarshal(raw, &page); err != nil || page.Status == 0 {
		return cachedPage{}, false
	}
	if page.ContentType == "" {
		page.ContentType = "application/json; charset=utf-8"
	}
	return page, true
}

func shouldSkipCachePath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		p := strings.TrimSpace(pattern)
		switch {
		case p == "":
		case strings.HasSuffix(p, "*"):
			if strings.HasPrefix(path, strings.TrimSuffix(p, "*")) {
				return true
			}
		case path == p:
			return true
		}
	}
	return false
}

// hasBypassQuery matches cache busters and page previews.
func hasBypassQuery(c *gin.Context) bool {
	query := c.Request.URL.Query()
	for _, key := range []string{"ts", "timestamp", "_t", "t", "preview_id"} {
		if strings.TrimSpace(query.Get(key)) != "" {
			return true
		}
	}
	return false
}

// isCacheableResponse accepts rendered pages and resolver redirects unless
// the handler marked them private.
func isCacheableResponse(status int, headers http.Header) bool {
	switch status {
	case http.StatusOK, http.StatusFound:
	default:
		return false
	}
	cacheControl := strings.ToLower(headers.Get("Cache-Control"))
	return !strings.Contains(cacheControl, "no-cache") &&
		!strings.Contains(cacheControl, "no-store") &&
		!strings.Contains(cacheControl, "private")
}

func setPrivateCacheHeader(w gin.ResponseWriter) {
	if w.Status() != http.StatusOK {
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=0, no-cache, no-store, must-revalidate")
}

func setPublicCacheHeader(w gin.ResponseWriter, ttlSeconds int, cdn bool) {
	if !cdn || w.Header().Get("Cache-Control") != "" {
		return
	}
	ttl := strconv.Itoa(ttlSeconds)
	swr := strconv.Itoa(staleWhileRevalidate)
	w.Header().Set("CDN-Cache-Control", "max-age="+ttl+", stale-while-revalidate="+swr)
	w.Header().Set("Cache-Control", "s-maxage="+ttl+", stale-while-revalidate="+swr)
}
