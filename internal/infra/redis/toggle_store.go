package redis

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"telegram-video-gen/internal/domain/ports/repository"
)

var _ repository.ToggleStore = (*ToggleStore)(nil)

// ToggleStore reads feature toggles from Redis keys ("toggle:<name>").
// Accepted values: "1"/"true"/"on" and "0"/"false"/"off". A missing key or a
// Redis error yields the supplied default, never a failure.
type ToggleStore struct {
	client RedisClient
	log    *zerolog.Logger
}

func NewToggleStore(client RedisClient, logger *zerolog.Logger) *ToggleStore {
	l := logger.With().Str("component", "ToggleStore").Logger()
	return &ToggleStore{client: client, log: &l}
}

func (t *ToggleStore) key(name string) string { return "toggle:" + name }

func (t *ToggleStore) Enabled(ctx context.Context, name string, def bool) bool {
	val, err := t.client.Get(ctx, t.key(name))
	if err != nil {
		if err != redis.Nil {
			t.log.Warn().Err(err).Str("toggle", name).Msg("toggle read failed, using default")
		}
		return def
	}
	switch val {
	case "1", "true", "on":
		return true
	case "0", "false", "off":
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	t.log.Warn().Str("toggle", name).Str("value", val).Msg("unrecognized toggle value, using default")
	return def
}

// Set is used by ops tooling and tests to flip a toggle.
func (t *ToggleStore) Set(ctx context.Context, name string, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return t.client.Set(ctx, t.key(name), v, 0)
}
