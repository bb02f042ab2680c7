package roomclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
	"github.com/rocketscienceinc/tictactoe-rooms/transport/rest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	rooms := service.NewRoomService(discardLogger(), repository.NewMemoryRoomRepository(time.Hour))
	server := httptest.NewServer(rest.NewRouter(discardLogger(), rooms))
	t.Cleanup(server.Close)

	return New(discardLogger(), server.URL, server.Client())
}

func TestClient_RoomLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	room := entity.NewRoom("AB12", "Alice")

	// When: creating a room
	created, err := client.Create(ctx, &room)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	// Then: the id is taken
	_, err = client.Create(ctx, &room)
	require.ErrorIs(t, err, apperror.ErrRoomExists)

	// And: writes are compare-and-set
	joined := created.WithPlayerO("Bob")
	updated, err := client.Update(ctx, &joined)
	require.NoError(t, err)
	assert.Equal(t, "Bob", updated.PlayerO)

	_, err = client.Update(ctx, &joined)
	require.ErrorIs(t, err, apperror.ErrConflict)

	withMessage, err := client.PostMessage(ctx, "AB12", "Bob", "hi")
	require.NoError(t, err)
	require.Len(t, withMessage.Messages, 1)

	require.NoError(t, client.DeleteByID(ctx, "AB12"))

	_, err = client.GetByID(ctx, "AB12")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestClient_StoreUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(discardLogger(), url, nil)

	_, err := client.GetByID(context.Background(), "AB12")
	require.ErrorIs(t, err, apperror.ErrStoreUnavailable)

	_, err = client.Subscribe(context.Background(), "AB12")
	require.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

func TestClient_Subscribe(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room := entity.NewRoom("AB12", "Alice")
	created, err := client.Create(ctx, &room)
	require.NoError(t, err)

	updates, err := client.Subscribe(ctx, "AB12")
	require.NoError(t, err)

	first := <-updates
	assert.Equal(t, created.Version, first.Version)

	joined := created.WithPlayerO("Bob")
	_, err = client.Update(ctx, &joined)
	require.NoError(t, err)

	select {
	case next := <-updates:
		assert.Equal(t, "Bob", next.PlayerO)
	case <-time.After(5 * time.Second):
		t.Fatal("no update received")
	}

	// the stream ends with the context
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClient_DrivesTwoSessions(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	// Given: Alice follows over websocket and Bob polls
	alice := session.NewController(discardLogger(), client, session.WatchFunc(client.Subscribe))
	bob := session.NewController(discardLogger(), client, session.NewPoller(discardLogger(), client, 20*time.Millisecond))
	defer alice.Close()
	defer bob.Close()

	created, err := alice.CreateRoom(ctx, "Alice")
	require.NoError(t, err)

	_, err = bob.JoinRoom(ctx, created.RoomID, "Bob")
	require.NoError(t, err)

	// When: they play X:0, O:1, X:3, O:2, X:6
	for _, step := range []struct {
		player *session.Controller
		cell   int
	}{{alice, 0}, {bob, 1}, {alice, 3}, {bob, 2}, {alice, 6}} {
		_, err = step.player.AttemptMove(ctx, step.cell)
		require.NoError(t, err, "cell %d", step.cell)
	}

	// Then: both views converge on X's win
	for _, player := range []*session.Controller{alice, bob} {
		require.Eventually(t, func() bool {
			return player.Session().View.Outcome.IsWin()
		}, 5*time.Second, 10*time.Millisecond)
	}

	assert.Equal(t, "Alice", bob.Session().View.WinnerName)
}

func TestClient_UpdateErrorsCarryServerDetailOnce(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	room := entity.NewRoom("AB12", "Alice")
	created, err := client.Create(ctx, &room)
	require.NoError(t, err)

	joined := created.WithPlayerO("Bob")
	_, err = client.Update(ctx, &joined)
	require.NoError(t, err)

	t.Run("Stale write", func(t *testing.T) {
		_, err := client.Update(ctx, &joined)

		require.ErrorIs(t, err, apperror.ErrConflict)
		assert.Equal(t, "room was modified concurrently: stored version 2, got 1", err.Error())
	})

	t.Run("Malformed document", func(t *testing.T) {
		broken := created.Clone()
		broken.Turn = "Z"

		_, err := client.Update(ctx, &broken)

		require.ErrorIs(t, err, apperror.ErrInvalidRoom)
		assert.Equal(t, 1, strings.Count(err.Error(), apperror.ErrInvalidRoom.Error()))
	})

	t.Run("Controller adds its context once", func(t *testing.T) {
		channel := &staleChannel{Client: client}
		player := session.NewController(discardLogger(), channel, nil)
		defer player.Close()

		current, err := player.CreateRoom(ctx, "Carol")
		require.NoError(t, err)

		// Given: the player keeps reading a copy that another write has replaced
		channel.room, err = client.GetByID(ctx, current.RoomID)
		require.NoError(t, err)

		_, err = client.PostMessage(ctx, current.RoomID, "Dave", "hi")
		require.NoError(t, err)

		// When: the move is written on top of the old copy
		_, err = player.AttemptMove(ctx, 4)

		// Then: the error reads as one chain
		require.ErrorIs(t, err, apperror.ErrConflict)
		assert.Equal(t, "failed to update room: room was modified concurrently: stored version 2, got 1", err.Error())
	})
}

// staleChannel serves room, once set, instead of reading the store.
type staleChannel struct {
	*Client
	room *entity.Room
}

func (that *staleChannel) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	if that.room == nil {
		return that.Client.GetByID(ctx, id)
	}

	room := that.room.Clone()
	return &room, nil
}

func TestClient_ChatHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	// Given: a full room
	alice := session.NewController(discardLogger(), client, nil)
	bob := session.NewController(discardLogger(), client, nil)
	defer alice.Close()
	defer bob.Close()

	created, err := alice.CreateRoom(ctx, "Alice")
	require.NoError(t, err)

	_, err = bob.JoinRoom(ctx, created.RoomID, "Bob")
	require.NoError(t, err)

	// When: more of the longest messages are posted than a room keeps
	text := strings.Repeat("<", service.MaxMessageLength)
	for i := 0; i < entity.MaxMessages+10; i++ {
		_, err = client.PostMessage(ctx, created.RoomID, "Bob", text)
		require.NoError(t, err)
	}

	// Then: moves still go through
	current, err := alice.AttemptMove(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, entity.MarkX, current.View.Board[4])

	stored, err := client.GetByID(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, entity.MaxMessages)
	assert.Equal(t, entity.MarkX, stored.Board[4])
}
