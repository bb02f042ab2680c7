package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoad(t *testing.T) {
	t.Run("Reads values from yaml and fills defaults", func(t *testing.T) {
		// Given: a config file that sets only the store and redis host
		path := filepath.Join(t.TempDir(), "config.yml")
		content := "store: memory\nredis:\n  host: cache\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		// When: loading it
		conf := MustLoad(path)

		// Then: explicit values win and the rest come from defaults
		assert.Equal(t, StoreMemory, conf.Store)
		assert.Equal(t, "cache:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, "3000", conf.HTTPPort)
		assert.Equal(t, "info", conf.LogLevel)
		assert.Equal(t, 24*time.Hour, conf.RoomTTL)
	})

	t.Run("Panics when the file is missing", func(t *testing.T) {
		assert.Panics(t, func() {
			MustLoad(filepath.Join(t.TempDir(), "missing.yml"))
		})
	})
}

func TestMustLoadClient(t *testing.T) {
	// Given: no client config file
	path := filepath.Join(t.TempDir(), "client.yml")

	// When: loading the client config
	conf := MustLoadClient(path)

	// Then: defaults are used
	assert.Equal(t, SyncPoll, conf.SyncMode)
	assert.Equal(t, 2*time.Second, conf.PollInterval)
	assert.Equal(t, "http://localhost:3000", conf.ServerURL)
}
