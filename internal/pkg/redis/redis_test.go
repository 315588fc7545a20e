package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestConnect_RejectsBadURL(t *testing.T) {
	_, err := Connect("http://localhost:6379")
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestDel_NoKeysSkipsRoundTrip(t *testing.T) {
	c := Wrap(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	t.Cleanup(func() { _ = c.Close() })

	assert.NoError(t, c.Del(context.Background()))
	assert.Error(t, c.Ping(context.Background()))
}
