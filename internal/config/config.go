package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

const (
	SyncPoll  = "poll"
	SyncPush  = "push"
	SyncRedis = "redis"
)

type Config struct {
	LogLevel          string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string        `yaml:"http-port" env:"HTTP_PORT" env-default:"3000"`
	Store             string        `yaml:"store" env:"STORE" env-default:"redis"`
	RoomTTL           time.Duration `yaml:"room-ttl" env:"ROOM_TTL" env-default:"24h"`
	Redis             Redis         `yaml:"redis"`
	SQLiteStoragePath string        `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"rooms.db"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Client configures the terminal client.
type Client struct {
	LogLevel     string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"warn"`
	ServerURL    string        `yaml:"server-url" env:"SERVER_URL" env-default:"http://localhost:3000"`
	SyncMode     string        `yaml:"sync-mode" env:"SYNC_MODE" env-default:"poll"`
	PollInterval time.Duration `yaml:"poll-interval" env:"POLL_INTERVAL" env-default:"2s"`
	RoomTTL      time.Duration `yaml:"room-ttl" env:"ROOM_TTL" env-default:"24h"`
	Redis        Redis         `yaml:"redis"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// MustLoadClient - load client configuration from path, falling back to the environment
// when the file is missing.
func MustLoadClient(path string) *Client {
	config := &Client{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		if err = cleanenv.ReadEnv(config); err != nil {
			panic(fmt.Errorf("unable to load client config: %w", err))
		}
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
