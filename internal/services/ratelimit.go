package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/pkg/models"
)

const (
	TierFree    = "free"
	TierPremium = "premium"

	defaultRateLimitWindow = time.Hour
	rateLimitTimeout       = 2 * time.Second
)

// slidingWindow trims entries older than the window, admits the request only
// while the set is below the limit and reports when the oldest entry expires.
// Rejected requests are not recorded.
//
// KEYS[1] window set. ARGV: now (ms), window (ms), limit, member.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < limit then
	redis.call('ZADD', KEYS[1], now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', KEYS[1], window)

local reset = now + window
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RateLimitService limits requests per subject (a user ID, or "key:<api key>"
// for API-key callers) within a sliding window held in the hot Redis tier.
// Without Redis every request is allowed.
type RateLimitService struct {
	limits      map[string]int
	window      time.Duration
	redisClient *redis.Client
	logger      *logrus.Logger
	now         func() time.Time
}

func NewRateLimitService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	rl := cfg.Auth.RateLimit
	window := rl.Window
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	return &RateLimitService{
		limits: map[string]int{
			TierFree:    rl.Default,
			TierPremium: rl.Premium,
			TierAdmin:   rl.Premium * 10,
		},
		window:      window,
		redisClient: redisClient,
		logger:      logger,
		now:         time.Now,
	}
}

// Limit is the number of requests tier may make per window. Unknown tiers
// get the free limit.
func (s *RateLimitService) Limit(tier string) int {
	if limit, ok := s.limits[tier]; ok {
		return limit
	}
	return s.limits[TierFree]
}

func rateLimitKey(subject string) string {
	return "rate_limit:" + subject
}

// IsAllowed counts one request for subject and reports whether it fits in
// the current window. A Redis failure is returned with allowed set to true.
func (s *RateLimitService) IsAllowed(subject, tier string) (bool, *models.RateLimitInfo, error) {
	limit := s.Limit(tier)
	now := s.now()

	if s.redisClient == nil {
		return true, &models.RateLimitInfo{
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(s.window).Unix(),
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
	defer cancel()

	reply, err := slidingWindow.Run(ctx, s.redisClient, []string{rateLimitKey(subject)},
		now.UnixMilli(), s.window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return true, nil, fmt.Errorf("failed to check rate limit for %s: %w", subject, err)
	}
	if len(reply) != 3 {
		return true, nil, fmt.Errorf("unexpected rate limit reply %v", reply)
	}

	allowed, count, resetMillis := reply[0] == 1, int(reply[1]), reply[2]
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	if !allowed {
		s.logger.WithFields(logrus.Fields{
			"subject": subject,
			"tier":    tier,
			"limit":   limit,
		}).Debug("Request outside rate limit window")
	}

	return allowed, &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: time.UnixMilli(resetMillis).Unix(),
	}, nil
}
