package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelRateLimiter is a per-channel sliding window limiter for
// outbound webhook posts, backed by a Redis sorted set. A Lua script
// atomically expires old entries, checks the count, and admits the
// new post.
type ChannelRateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	limit       int
	window      time.Duration
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

// NewChannelRateLimiter admits at most limit posts per window per
// channel. A non-positive limit disables limiting.
func NewChannelRateLimiter(redisClient *redis.Client, limit int, window time.Duration, logger *slog.Logger) *ChannelRateLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &ChannelRateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		limit:       limit,
		window:      window,
	}
}

func channelKey(guildID string) string {
	return fmt.Sprintf("notify_rl:%s", guildID)
}

// Allow checks whether a post to this guild's channel is within the
// limit. Fails open when Redis is unavailable: pacing is best-effort,
// delivery correctness does not depend on it.
func (rl *ChannelRateLimiter) Allow(ctx context.Context, guildID string) bool {
	if rl.limit <= 0 || rl.redisClient == nil {
		return true
	}

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{channelKey(guildID)},
		now, rl.window.Milliseconds(), rl.limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("channel rate limiter script failed", "error", err, "guild_id", guildID)
		return true
	}

	if result == 0 {
		rl.logger.Debug("channel post rate limited", "guild_id", guildID, "limit", rl.limit)
		return false
	}
	return true
}
