package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/pkg/response"
	"github.com/redis/go-redis/v9"
)

const (
	idempotenceHeader  = "x-idempotence"
	idempotencePrefix  = "nine3v:idempotence:"
	idempotenceTTL     = 60 * time.Second
	idempotenceMaxBody = 1 << 20

	idempotencePending = "0"
	idempotenceDone    = "1"
)

// Idempotence stops a tree action (clone, publish, replace) from running twice
// when an editor submits the same request again within a minute. Paths
// matching skip are exact, or a prefix when they end in "*".
func Idempotence(rdb *redis.Client, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || shouldSkipIdempotence(c.Request.Method, c.Request.URL.Path, skip) {
			c.Next()
			return
		}
		fingerprint, ok := requestFingerprint(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := idempotencePrefix + fingerprint
		claimed, err := rdb.SetNX(ctx, key, idempotencePending, idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			if state, _ := rdb.Get(ctx, key).Result(); state == idempotencePending {
				response.Conflict(c, "The same request is still being processed.")
				return
			}
			response.Conflict(c, "The same request can only be sent once every 60 seconds.")
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusOK && status < http.StatusMultipleChoices {
			rdb.Set(ctx, key, idempotenceDone, redis.KeepTTL)
			return
		}
		// Failed attempts may be retried right away.
		rdb.Del(ctx, key)
	}
}

func shouldSkipIdempotence(method, path string, skip []string) bool {
	if method != http.MethodPost && method != http.MethodPut {
		return true
	}
	return shouldSkipCachePath(strings.TrimRight(strings.TrimSpace(path), "/"), skip)
}

// requestFingerprint identifies a submission by the x-idempotence header, or
// by who sent what to where. Anonymous requests without a body are not
// tracked.
func requestFingerprint(c *gin.Context) (string, bool) {
	if hdr := strings.TrimSpace(c.GetHeader(idempotenceHeader)); hdr != "" {
		return hdr, true
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, idempotenceMaxBody))
	if err != nil {
		return "", false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	who := CurrentUserID(c)
	if who == "" {
		if len(body) == 0 {
			return "", false
		}
		who = c.ClientIP() + "|" + c.Request.UserAgent()
	}

	h := sha256.New()
	for _, part := range []string{c.Request.Method, c.Request.URL.RequestURI(), who} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), true
}
