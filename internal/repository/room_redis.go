package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisRoom struct {
	logger *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

// NewRoomRepository - rooms are kept as JSON under "room:<id>" and every accepted
// write is published on "room:<id>:updates". A zero ttl keeps rooms forever.
func NewRoomRepository(logger *slog.Logger, client *redis.Client, ttl time.Duration) RoomRepository {
	return &redisRoom{
		logger: logger.With("component", "redis-room-repository"),
		client: client,
		ttl:    ttl,
	}
}

func (that *redisRoom) Create(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	stored := stamp(room, time.Now())

	data, err := marshalRoom(&stored)
	if err != nil {
		return nil, err
	}

	created, err := that.client.SetNX(ctx, roomKey(room.ID), data, that.ttl).Result()
	if err != nil {
		return nil, unavailable("failed to create room", err)
	}

	if !created {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomExists, room.ID)
	}

	that.publish(ctx, room.ID, data)

	return &stored, nil
}

func (that *redisRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	return that.get(ctx, that.client, id)
}

func (that *redisRoom) Update(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	key := roomKey(room.ID)

	var stored entity.Room

	txf := func(tx *redis.Tx) error {
		current, err := that.get(ctx, tx, room.ID)
		if err != nil {
			return err
		}

		if current.Version != room.Version {
			return fmt.Errorf("%w: stored version %d, got %d", apperror.ErrConflict, current.Version, room.Version)
		}

		stored = stamp(room, time.Now())

		data, err := marshalRoom(&stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, that.ttl)
			pipe.Publish(ctx, roomUpdatesChannel(room.ID), data)
			return nil
		})

		return err
	}

	err := that.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return &stored, nil
	case errors.Is(err, redis.TxFailedErr):
		return nil, fmt.Errorf("%w: %s", apperror.ErrConflict, room.ID)
	case errors.Is(err, apperror.ErrConflict), errors.Is(err, apperror.ErrRoomNotFound):
		return nil, err
	default:
		return nil, unavailable("failed to update room", err)
	}
}

func (that *redisRoom) DeleteByID(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, roomKey(id)).Err(); err != nil {
		return unavailable("failed to delete room by ID", err)
	}

	return nil
}

func (that *redisRoom) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error) {
	pubsub := that.client.Subscribe(ctx, roomUpdatesChannel(id))

	// wait for the subscription to be confirmed so no write is missed after return
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, unavailable("failed to subscribe to room", err)
	}

	updates := make(chan *entity.Room, 1)

	go func() {
		log := that.logger.With("method", "Subscribe", "roomID", id)

		defer close(updates)
		defer func() {
			if err := pubsub.Close(); err != nil {
				log.Error("failed to close subscription", "error", err)
			}
		}()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				room, err := unmarshalRoom([]byte(msg.Payload))
				if err != nil {
					log.Error("skipping malformed room update", "error", err)
					continue
				}

				select {
				case updates <- room:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates, nil
}

func (that *redisRoom) get(ctx context.Context, client getter, id string) (*entity.Room, error) {
	response, err := client.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	if err != nil {
		return nil, unavailable("failed to get room by id", err)
	}

	return unmarshalRoom(response)
}

func (that *redisRoom) publish(ctx context.Context, id string, data []byte) {
	if err := that.client.Publish(ctx, roomUpdatesChannel(id), data).Err(); err != nil {
		that.logger.Warn("failed to publish room update", "roomID", id, "error", err)
	}
}

func unavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, apperror.ErrStoreUnavailable, err)
}
