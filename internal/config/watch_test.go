package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeConfig(t, `
[embedding]
rate_limit_rpm = 100
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`
[embedding]
rate_limit_rpm = 42
`), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 42, cfg.Embedding.RateLimitRPM)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatchSkipsInvalidEdit(t *testing.T) {
	path := writeConfig(t, `
[embedding]
rate_limit_rpm = 100
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	time.Sleep(50 * time.Millisecond)
	// Validation fails (rpm must be positive); the callback must not fire.
	require.NoError(t, os.WriteFile(path, []byte(`
[embedding]
rate_limit_rpm = -1
`), 0o600))

	select {
	case <-reloaded:
		t.Fatal("invalid config must not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}

	// A subsequent valid edit still goes through.
	require.NoError(t, os.WriteFile(path, []byte(`
[embedding]
rate_limit_rpm = 7
`), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 7, cfg.Embedding.RateLimitRPM)
	case <-time.After(5 * time.Second):
		t.Fatal("valid edit after an invalid one was not applied")
	}
}

func TestWatchMissingFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Watch(ctx, "/nonexistent/config.toml", func(*Config) {})
	assert.Error(t, err)
}
