package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/metrics"
	"github.com/congo-pay/simwallet/internal/phone"
)

const loginRateKeyPrefix = "rl:login:v1:"

// LoginRateLimit limits login attempts per phone or IP using Redis if
// available. The phone is normalized the same way login resolves it, so every
// spelling of one number shares a counter. Keys carry a fingerprint of the
// identifier, never the number itself.
func LoginRateLimit(cache *redis.Client, maxPerMin int, defaultRegion string) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone  string `json:"phone"`
			Region string `json:"region"`
		}
		_ = c.BodyParser(&req)
		region := strings.TrimSpace(req.Region)
		if region == "" {
			region = defaultRegion
		}
		subject := phone.Normalize(req.Phone, region)
		if subject == "" {
			subject = c.IP()
		}
		key := loginRateKeyPrefix + logging.Fingerprint(subject)

		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			// fail open on cache errors
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			metrics.LoginThrottled.Inc()
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}
