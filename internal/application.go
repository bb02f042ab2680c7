package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
	"github.com/rocketscienceinc/tictactoe-rooms/transport/rest"
)

const shutdownTimeout = 5 * time.Second

var (
	ErrAddrNotFound = errors.New("redis address string is empty")
	ErrUnknownStore = errors.New("unknown room store")
)

// RunApp - runs the room store until SIGINT or SIGTERM.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	roomRepo, closeStore, err := OpenRoomRepository(ctx, logger, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeStore(); err != nil {
			log.Error("could not close room store", "error", err)
		}
	}()

	rooms := service.NewRoomService(logger, roomRepo)
	server := rest.NewServer(ctx, logger, conf.HTTPPort, rooms)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(server.Start)

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		return server.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// OpenRoomRepository connects the store selected by conf.Store. The returned
// function releases it.
func OpenRoomRepository(ctx context.Context, logger *slog.Logger, conf *config.Config) (repository.RoomRepository, func() error, error) {
	log := logger.With("component", "app", "store", conf.Store)

	switch conf.Store {
	case config.StoreRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		log.Info("room store ready", "addr", redisAddrString)

		return repository.NewRoomRepository(logger, redisStorage.Connection, conf.RoomTTL), redisStorage.Close, nil

	case config.StoreSQLite:
		sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open sqlite storage: %w", err)
		}

		if err = sqliteStorage.Init(ctx); err != nil {
			_ = sqliteStorage.Close()
			return nil, nil, fmt.Errorf("could not init sqlite storage: %w", err)
		}

		log.Info("room store ready", "path", conf.SQLiteStoragePath)

		return repository.NewSQLiteRoomRepository(sqliteStorage.Connection, conf.RoomTTL), sqliteStorage.Close, nil

	case config.StoreMemory:
		log.Info("room store ready")

		return repository.NewMemoryRoomRepository(conf.RoomTTL), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStore, conf.Store)
	}
}
