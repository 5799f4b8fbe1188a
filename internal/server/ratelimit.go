package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"bidvault/services/bidding/helpers"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// errRateLimited is reported to callers over the limit
var errRateLimited = errors.New("too many bids, slow down")

// slidingWindow trims the caller's window, counts it and records the request if under the limit.
// KEYS[1]=key ARGV[1]=now(ms) ARGV[2]=window start(ms) ARGV[3]=window(ms) ARGV[4]=member ARGV[5]=limit
// Returns the new count, or -1 when the caller is over the limit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '0', ARGV[2])
local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, ARGV[1], ARGV[4])
  redis.call('PEXPIRE', key, ARGV[3])
  return count + 1
end
return -1
`)

// RedisRateLimit limits bid placement per authenticated caller, or per client IP when there is none.
// It fails open: when Redis is unavailable requests pass and the error is logged.
func RedisRateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rate_limit:bids:ip:" + c.ClientIP()
		if userID, ok := helpers.CurrentUser(c); ok {
			key = "rate_limit:bids:user:" + userID
		}

		now := time.Now()
		nowMs := now.UnixMilli()
		member := fmt.Sprintf("%d-%s", now.UnixNano(), utils.GenerateID())

		res, err := slidingWindow.Run(c.Request.Context(), rdb, []string{key},
			nowMs, nowMs-window.Milliseconds(), window.Milliseconds(), member, limit).Int()
		if err != nil {
			utils.Warn("Rate limiter unavailable, allowing request", map[string]any{"key": key, "error": err.Error()})
			c.Next()
			return
		}

		if res < 0 {
			utils.JSONRejection(c, http.StatusTooManyRequests, errRateLimited, "rate limit exceeded", "RATE_LIMITED")
			utils.Warn("Bid rate limit exceeded", map[string]any{"key": key, "limit": limit})
			return
		}
		c.Next()
	}
}
