package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"festival-booking/config"
	"festival-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucketScript 每個 key 一個 bucket，每過 interval 補 1 個 token，最多 capacity 個
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

type RateLimiter struct {
	cfg    config.RateLimitConfig
	client *redis.Client
	now    func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, client *redis.Client) *RateLimiter {
	return &RateLimiter{cfg: cfg, client: client, now: time.Now}
}

// Handler 關閉或沒有 Redis 時直接放行；Redis 出錯也放行（fail open）
func (l *RateLimiter) Handler() gin.HandlerFunc {
	if !l.cfg.Enabled || l.client == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := l.key(c)
		args := []any{
			l.now().UnixMilli(),
			l.cfg.Capacity,
			l.cfg.RefillInterval.Milliseconds(),
			int64(l.cfg.TTL / time.Second),
		}

		vals, err := tokenBucketScript.Run(c.Request.Context(), l.client, []string{key}, args...).Int64Slice()
		if err != nil || len(vals) != 3 {
			logger.WithComponent("ratelimit").Warn("rate limit check failed, allowing request",
				zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			secs := int(math.Ceil(float64(retryMs) / 1000.0))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": secs,
			})
			return
		}
		c.Next()
	}
}

// key 依使用者與路由分 bucket，匿名請求退回用 IP
func (l *RateLimiter) key(c *gin.Context) string {
	who := CurrentUserRef(c)
	if who == "" {
		who = "ip:" + c.ClientIP()
	} else {
		who = "user:" + who
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return strings.Join([]string{l.cfg.Prefix, who, fmt.Sprintf("%s %s", c.Request.Method, route)}, ":")
}
