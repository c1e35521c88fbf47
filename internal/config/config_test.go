package config

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestLoadRequiresRoomTokenSecret(t *testing.T) {
	t.Setenv("ROOM_TOKEN_SECRET", "")

	_, err := Load()
	assert.NotEqual(t, nil, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROOM_TOKEN_SECRET", "s")
	t.Setenv("ROOM_STORE", "")
	t.Setenv("EXPORT_DEFAULT_WIDTH", "")
	t.Setenv("EXPORT_MAX_WIDTH", "")
	t.Setenv("EXPORT_MAX_HEIGHT", "")
	t.Setenv("ROOM_TOKEN_TTL", "")

	cfg, err := Load()
	assert.Equal(t, nil, err)
	assert.Equal(t, "memory", cfg.RoomStore)
	assert.Equal(t, float64(800), cfg.ExportDefaultWidth)
	assert.Equal(t, float64(600), cfg.ExportDefaultHeight)
	assert.Equal(t, float64(8192), cfg.ExportMaxWidth)
	assert.Equal(t, float64(8192), cfg.ExportMaxHeight)
	assert.Equal(t, time.Hour, cfg.RoomTokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROOM_TOKEN_SECRET", "s")
	t.Setenv("ROOM_STORE", "redis")
	t.Setenv("ROOM_TOKEN_TTL", "15m")
	t.Setenv("EXPORT_DEFAULT_WIDTH", "1024")
	t.Setenv("EXPORT_MAX_WIDTH", "4096")
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load()
	assert.Equal(t, nil, err)
	assert.Equal(t, "redis", cfg.RoomStore)
	assert.Equal(t, 15*time.Minute, cfg.RoomTokenTTL)
	assert.Equal(t, float64(1024), cfg.ExportDefaultWidth)
	assert.Equal(t, float64(4096), cfg.ExportMaxWidth)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestLoadRejectsUnknownRoomStore(t *testing.T) {
	t.Setenv("ROOM_TOKEN_SECRET", "s")
	t.Setenv("ROOM_STORE", "etcd")

	_, err := Load()
	assert.NotEqual(t, nil, err)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("USER_CACHE_TTL", "soon")
	assert.Equal(t, 5*time.Minute, getEnvDuration("USER_CACHE_TTL", 5*time.Minute))
}
