package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const DefaultPollInterval = 2 * time.Second

// SyncChannel is the shared room store as seen by one client.
type SyncChannel interface {
	Create(ctx context.Context, room *entity.Room) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Update(ctx context.Context, room *entity.Room) (*entity.Room, error)
}

// Watcher produces room snapshots until ctx is canceled, then closes the channel.
type Watcher interface {
	Watch(ctx context.Context, roomID string) (<-chan *entity.Room, error)
}

// WatchFunc adapts a push subscription such as RoomRepository.Subscribe to a Watcher.
type WatchFunc func(ctx context.Context, roomID string) (<-chan *entity.Room, error)

func (that WatchFunc) Watch(ctx context.Context, roomID string) (<-chan *entity.Room, error) {
	return that(ctx, roomID)
}

type roomReader interface {
	GetByID(ctx context.Context, id string) (*entity.Room, error)
}

// Poller turns periodic reads into a snapshot stream for stores without push.
type Poller struct {
	logger   *slog.Logger
	reader   roomReader
	interval time.Duration
}

func NewPoller(logger *slog.Logger, reader roomReader, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{
		logger:   logger.With("component", "poller"),
		reader:   reader,
		interval: interval,
	}
}

// Watch reads the room immediately and then once per interval.
func (that *Poller) Watch(ctx context.Context, roomID string) (<-chan *entity.Room, error) {
	snapshots := make(chan *entity.Room, 1)

	go func() {
		defer close(snapshots)

		ticker := time.NewTicker(that.interval)
		defer ticker.Stop()

		for {
			if !that.poll(ctx, roomID, snapshots) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return snapshots, nil
}

// poll reports false once ctx is done.
func (that *Poller) poll(ctx context.Context, roomID string, snapshots chan<- *entity.Room) bool {
	room, err := that.reader.GetByID(ctx, roomID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}

		that.logger.Warn("failed to fetch room", "roomID", roomID, "error", err)

		return true
	}

	select {
	case snapshots <- room:
		return true
	case <-ctx.Done():
		return false
	}
}
