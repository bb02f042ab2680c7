package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// RoomRepository stores room documents with compare-and-set writes.
//
// Create fails with apperror.ErrRoomExists when the id is taken. Update succeeds only
// when room.Version equals the stored version and fails with apperror.ErrConflict
// otherwise; the stored version is incremented on every accepted write. Subscribe
// delivers every accepted write of the room until ctx is canceled.
type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Update(ctx context.Context, room *entity.Room) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error)
}

func roomKey(id string) string {
	return "room:" + id
}

func roomUpdatesChannel(id string) string {
	return "room:" + id + ":updates"
}

// stamp returns the room as it is stored after an accepted write based on room.Version.
func stamp(room *entity.Room, now time.Time) entity.Room {
	next := room.Clone()
	next.Version = room.Version + 1
	next.UpdatedAt = now.UTC()

	return next
}

func marshalRoom(room *entity.Room) ([]byte, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("could not marshal room: %w", err)
	}

	return data, nil
}

func unmarshalRoom(data []byte) (*entity.Room, error) {
	var room entity.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}
