package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
	"github.com/rocketscienceinc/tictactoe-rooms/transport/roomclient"
)

// main - starts an interactive terminal client.
func main() {
	configPath := flag.String("config", "client.yml", "path to the client config file")
	flag.Parse()

	conf := config.MustLoadClient(*configPath)
	logger := initLogger(conf)

	if err := run(logger, conf); err != nil {
		fmt.Fprintf(os.Stderr, "tttclient: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, conf *config.Client) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel, watcher, closeChannel, err := connect(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer closeChannel()

	controller := session.NewController(logger, channel, watcher)
	defer controller.Close()

	fmt.Fprintf(os.Stdout, "Connected (%s sync). Type help for commands.\n", conf.SyncMode)

	return newShell(controller, os.Stdout).run(ctx, os.Stdin)
}

// connect builds the sync channel selected by conf.SyncMode.
func connect(ctx context.Context, logger *slog.Logger, conf *config.Client) (session.SyncChannel, session.Watcher, func(), error) {
	switch conf.SyncMode {
	case config.SyncPoll:
		client := roomclient.New(logger, conf.ServerURL, nil)
		return client, session.NewPoller(logger, client, conf.PollInterval), func() {}, nil

	case config.SyncPush:
		client := roomclient.New(logger, conf.ServerURL, nil)
		return client, session.WatchFunc(client.Subscribe), func() {}, nil

	case config.SyncRedis:
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		repo := repository.NewRoomRepository(logger, redisStorage.Connection, conf.RoomTTL)
		closeStorage := func() {
			if err := redisStorage.Close(); err != nil {
				logger.Error("could not close redis storage", "error", err)
			}
		}

		return repo, session.WatchFunc(repo.Subscribe), closeStorage, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown sync mode %q", conf.SyncMode)
	}
}

// initialize logger. Output goes to stderr so it does not mix with the board.
func initLogger(conf *config.Client) *slog.Logger {
	level := slog.LevelWarn

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
