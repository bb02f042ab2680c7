package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
)

type mockRoomRepo struct {
	mock.Mock
}

func (m *mockRoomRepo) Create(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	args := m.Called(ctx, room)
	result, _ := args.Get(0).(*entity.Room)
	return result, args.Error(1)
}

func (m *mockRoomRepo) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	args := m.Called(ctx, id)
	result, _ := args.Get(0).(*entity.Room)
	return result, args.Error(1)
}

func (m *mockRoomRepo) Update(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	args := m.Called(ctx, room)
	result, _ := args.Get(0).(*entity.Room)
	return result, args.Error(1)
}

func (m *mockRoomRepo) DeleteByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRoomRepo) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error) {
	args := m.Called(ctx, id)
	result, _ := args.Get(0).(<-chan *entity.Room)
	return result, args.Error(1)
}

func newTestService() (RoomService, repository.RoomRepository) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryRoomRepository(time.Hour)

	return NewRoomService(logger, repo), repo
}

func TestRoomService_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and read back", func(t *testing.T) {
		service, _ := newTestService()
		room := entity.NewRoom("ab12", "Alice")

		// When: creating with a lower-case id
		created, err := service.CreateRoom(ctx, &room)
		require.NoError(t, err)

		// Then: the id is normalized and the first version is stored
		assert.Equal(t, "AB12", created.ID)
		assert.Equal(t, int64(1), created.Version)

		found, err := service.GetRoom(ctx, "ab12")
		require.NoError(t, err)
		assert.Equal(t, "Alice", found.PlayerX)
	})

	t.Run("Duplicate id", func(t *testing.T) {
		service, _ := newTestService()
		room := entity.NewRoom("AB12", "Alice")
		_, err := service.CreateRoom(ctx, &room)
		require.NoError(t, err)

		again := entity.NewRoom("AB12", "Bob")
		_, err = service.CreateRoom(ctx, &again)

		require.ErrorIs(t, err, apperror.ErrRoomExists)
	})

	t.Run("Malformed documents are rejected", func(t *testing.T) {
		service, _ := newTestService()

		tests := map[string]struct {
			mutate   func(room *entity.Room)
			expected error
		}{
			"bad id":           {func(room *entity.Room) { room.ID = "AB-1" }, apperror.ErrInvalidRoomID},
			"bad cell":         {func(room *entity.Room) { room.Board[3] = "Z" }, apperror.ErrInvalidRoom},
			"bad turn":         {func(room *entity.Room) { room.Turn = "" }, apperror.ErrInvalidRoom},
			"missing creator":  {func(room *entity.Room) { room.PlayerX = " " }, apperror.ErrEmptyName},
			"long name":        {func(room *entity.Room) { room.PlayerX = strings.Repeat("a", MaxNameLength+1) }, apperror.ErrInvalidRoom},
			"unknown outcome":  {func(room *entity.Room) { room.Outcome.Status = "draw" }, apperror.ErrInvalidRoom},
			"win without mark": {func(room *entity.Room) { room.Outcome = entity.Outcome{Status: entity.StatusWin} }, apperror.ErrInvalidRoom},
			"not a new room":   {func(room *entity.Room) { room.Version = 3 }, apperror.ErrInvalidRoom},
			"too much chat": {func(room *entity.Room) {
				room.Messages = make([]entity.Message, entity.MaxMessages+1)
			}, apperror.ErrInvalidRoom},
		}

		for name, tt := range tests {
			t.Run(name, func(t *testing.T) {
				room := entity.NewRoom("AB12", "Alice")
				tt.mutate(&room)

				_, err := service.CreateRoom(ctx, &room)

				require.ErrorIs(t, err, tt.expected)
			})
		}
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepts the read version and rejects a stale one", func(t *testing.T) {
		service, _ := newTestService()
		room := entity.NewRoom("AB12", "Alice")
		created, err := service.CreateRoom(ctx, &room)
		require.NoError(t, err)

		// Given: two clients read the same version
		first := created.WithPlayerO("Bob")
		second := created.WithPlayerO("Carol")

		// When: both write
		updated, err := service.UpdateRoom(ctx, "AB12", &first)
		require.NoError(t, err)
		_, err = service.UpdateRoom(ctx, "AB12", &second)

		// Then: only the first write lands
		assert.Equal(t, "Bob", updated.PlayerO)
		require.ErrorIs(t, err, apperror.ErrConflict)

		stored, err := service.GetRoom(ctx, "AB12")
		require.NoError(t, err)
		assert.Equal(t, "Bob", stored.PlayerO)
	})

	t.Run("Path and body ids must match", func(t *testing.T) {
		service, _ := newTestService()
		room := entity.NewRoom("AB12", "Alice")

		_, err := service.UpdateRoom(ctx, "CD34", &room)

		require.ErrorIs(t, err, apperror.ErrInvalidRoom)
	})

	t.Run("Unknown room", func(t *testing.T) {
		service, _ := newTestService()
		room := entity.NewRoom("AB12", "Alice")
		room.Version = 1

		_, err := service.UpdateRoom(ctx, "AB12", &room)

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestRoomService_PostMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Appends to the room", func(t *testing.T) {
		service, _ := newTestService()
		room := entity.NewRoom("AB12", "Alice")
		_, err := service.CreateRoom(ctx, &room)
		require.NoError(t, err)

		updated, err := service.PostMessage(ctx, "ab12", "Alice", "  hi  ")
		require.NoError(t, err)

		require.Len(t, updated.Messages, 1)
		assert.Equal(t, "hi", updated.Messages[0].Text)
		assert.Equal(t, "Alice", updated.Messages[0].Author)
		assert.NotEmpty(t, updated.Messages[0].ID)
	})

	t.Run("Retries after a concurrent write", func(t *testing.T) {
		// Given: the first write loses the race
		repo := &mockRoomRepo{}
		stale := entity.NewRoom("AB12", "Alice")
		stale.Version = 1
		fresh := stale.WithPlayerO("Bob")
		fresh.Version = 2
		accepted := fresh.Clone()
		accepted.Version = 3

		repo.On("GetByID", mock.Anything, "AB12").Return(&stale, nil).Once()
		repo.On("Update", mock.Anything, mock.Anything).Return(nil, apperror.ErrConflict).Once()
		repo.On("GetByID", mock.Anything, "AB12").Return(&fresh, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(room *entity.Room) bool {
			return room.Version == 2 && room.PlayerO == "Bob" && len(room.Messages) == 1
		})).Return(&accepted, nil).Once()

		service := NewRoomService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)

		// When: posting a message
		updated, err := service.PostMessage(ctx, "AB12", "Alice", "hi")

		// Then: the message is appended on top of the newer version
		require.NoError(t, err)
		assert.Equal(t, int64(3), updated.Version)
		repo.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		service, _ := newTestService()

		_, err := service.PostMessage(ctx, "AB12", "", "hi")
		require.ErrorIs(t, err, apperror.ErrEmptyName)

		_, err = service.PostMessage(ctx, "AB12", "Alice", "   ")
		require.ErrorIs(t, err, apperror.ErrInvalidRoom)

		_, err = service.PostMessage(ctx, "AB12", "Alice", strings.Repeat("x", MaxMessageLength+1))
		require.ErrorIs(t, err, apperror.ErrInvalidRoom)

		_, err = service.PostMessage(ctx, "nope", "Alice", "hi")
		require.ErrorIs(t, err, apperror.ErrInvalidRoomID)
	})
}

func TestRoomService_DeleteAndSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, _ := newTestService()
	room := entity.NewRoom("AB12", "Alice")
	created, err := service.CreateRoom(ctx, &room)
	require.NoError(t, err)

	// Given: a subscriber
	updates, err := service.Subscribe(ctx, "AB12")
	require.NoError(t, err)

	// When: the room changes
	joined := created.WithPlayerO("Bob")
	_, err = service.UpdateRoom(ctx, "AB12", &joined)
	require.NoError(t, err)

	// Then: the subscriber sees the write
	select {
	case snapshot := <-updates:
		assert.Equal(t, "Bob", snapshot.PlayerO)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	// And: a deleted room can no longer be followed
	require.NoError(t, service.DeleteRoom(ctx, "AB12"))

	_, err = service.GetRoom(ctx, "AB12")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)

	_, err = service.Subscribe(ctx, "AB12")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}
