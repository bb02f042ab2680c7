package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type memoryRecord struct {
	room      entity.Room
	expiresAt time.Time
}

type memoryRoom struct {
	mu    sync.Mutex
	rooms map[string]memoryRecord
	ttl   time.Duration
	now   func() time.Time
	hub   *hub
}

// NewMemoryRoomRepository keeps rooms in process memory. Used for local play and tests.
func NewMemoryRoomRepository(ttl time.Duration) RoomRepository {
	return newMemoryRoom(ttl, time.Now)
}

func newMemoryRoom(ttl time.Duration, now func() time.Time) *memoryRoom {
	return &memoryRoom{
		rooms: make(map[string]memoryRecord),
		ttl:   ttl,
		now:   now,
		hub:   newHub(),
	}
}

func (that *memoryRoom) Create(_ context.Context, room *entity.Room) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.lookup(room.ID); ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomExists, room.ID)
	}

	return that.store(room), nil
}

func (that *memoryRoom) GetByID(_ context.Context, id string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	record, ok := that.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	room := record.room.Clone()

	return &room, nil
}

func (that *memoryRoom) Update(_ context.Context, room *entity.Room) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	record, ok := that.lookup(room.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, room.ID)
	}

	if record.room.Version != room.Version {
		return nil, fmt.Errorf("%w: stored version %d, got %d", apperror.ErrConflict, record.room.Version, room.Version)
	}

	return that.store(room), nil
}

func (that *memoryRoom) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, id)

	return nil
}

func (that *memoryRoom) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error) {
	return that.hub.subscribe(ctx, id), nil
}

// lookup drops the room when it has expired. Callers hold mu.
func (that *memoryRoom) lookup(id string) (memoryRecord, bool) {
	record, ok := that.rooms[id]
	if !ok {
		return memoryRecord{}, false
	}

	if !record.expiresAt.IsZero() && !that.now().Before(record.expiresAt) {
		delete(that.rooms, id)
		return memoryRecord{}, false
	}

	return record, true
}

// store saves the next version of room and notifies subscribers. Callers hold mu.
func (that *memoryRoom) store(room *entity.Room) *entity.Room {
	now := that.now()
	stored := stamp(room, now)

	record := memoryRecord{room: stored}
	if that.ttl > 0 {
		record.expiresAt = now.Add(that.ttl)
	}
	that.rooms[room.ID] = record

	that.hub.publish(stored)

	result := stored.Clone()

	return &result
}
