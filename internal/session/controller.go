package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/tictactoe"
)

const maxCreateAttempts = 5

// Controller is one client's participation in a room. Every write is checked
// against the latest stored room before it reaches the channel, and a local
// change only shows up in the session after the store accepts it.
//
// Controller methods are meant to be called from a single goroutine; snapshots
// from the watcher are applied concurrently and published on Updates.
type Controller struct {
	logger  *slog.Logger
	channel SyncChannel
	watcher Watcher

	mu         sync.Mutex
	session    entity.Session
	generation uint64
	stopWatch  context.CancelFunc

	updates chan entity.Session
}

func NewController(logger *slog.Logger, channel SyncChannel, watcher Watcher) *Controller {
	return &Controller{
		logger:  logger.With("component", "session"),
		channel: channel,
		watcher: watcher,
		updates: make(chan entity.Session, 1),
	}
}

// Session returns the current session value.
func (that *Controller) Session() entity.Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.session
}

// Updates delivers the latest session after every change. Values not read in
// time are replaced by newer ones.
func (that *Controller) Updates() <-chan entity.Session {
	return that.updates
}

// CreateRoom allocates a fresh room code and seats the caller as X.
func (that *Controller) CreateRoom(ctx context.Context, name string) (entity.Session, error) {
	log := that.logger.With("method", "CreateRoom")

	name = strings.TrimSpace(name)
	if name == "" {
		return that.Session(), apperror.ErrEmptyName
	}

	if that.Session().IsJoined() {
		return that.Session(), apperror.ErrAlreadyJoined
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		roomID, err := pkg.GenerateRoomID()
		if err != nil {
			return that.Session(), fmt.Errorf("failed to generate room id: %w", err)
		}

		room := entity.NewRoom(roomID, name)

		stored, err := that.channel.Create(ctx, &room)
		if errors.Is(err, apperror.ErrRoomExists) {
			log.Debug("room code taken, retrying", "roomID", roomID, "attempt", attempt)
			continue
		}

		if err != nil {
			return that.Session(), fmt.Errorf("failed to create room: %w", err)
		}

		log.Info("room created", "roomID", roomID)

		return that.enter(entity.NewSession(entity.IdentityX, name, *stored)), nil
	}

	return that.Session(), fmt.Errorf("failed to create room after %d attempts: %w", maxCreateAttempts, apperror.ErrRoomExists)
}

// JoinRoom takes the O seat of roomID. Seats are never handed out by name, so
// a room whose O seat is taken refuses every further joiner.
func (that *Controller) JoinRoom(ctx context.Context, roomID, name string) (entity.Session, error) {
	log := that.logger.With("method", "JoinRoom")

	name = strings.TrimSpace(name)
	if name == "" {
		return that.Session(), apperror.ErrEmptyName
	}

	room, err := that.lookupRoom(ctx, roomID)
	if err != nil {
		return that.Session(), err
	}

	log = log.With("roomID", room.ID)

	if room.HasOpponent() {
		return that.Session(), fmt.Errorf("%w: %s", apperror.ErrRoomFull, room.ID)
	}

	joined := room.WithPlayerO(name)

	stored, err := that.channel.Update(ctx, &joined)
	if err != nil {
		return that.Session(), fmt.Errorf("failed to join room: %w", err)
	}

	log.Info("joined room", "identity", entity.IdentityO)

	return that.enter(entity.NewSession(entity.IdentityO, name, *stored)), nil
}

// Spectate follows roomID without taking a seat. Nothing is written.
func (that *Controller) Spectate(ctx context.Context, roomID string) (entity.Session, error) {
	room, err := that.lookupRoom(ctx, roomID)
	if err != nil {
		return that.Session(), err
	}

	that.logger.Info("spectating room", "roomID", room.ID)

	return that.enter(entity.NewSession(entity.IdentitySpectator, "", *room)), nil
}

// AttemptMove places the session's mark on cell. Illegal moves write nothing and
// always return an error wrapping apperror.ErrIllegalMove.
func (that *Controller) AttemptMove(ctx context.Context, cell int) (entity.Session, error) {
	current, mark, err := that.seated()
	if err != nil {
		return current, err
	}

	log := that.logger.With("method", "AttemptMove", "roomID", current.RoomID, "cell", cell, "mark", mark)

	room, err := that.fetch(ctx, current.RoomID)
	if err != nil {
		return that.Session(), err
	}

	next, err := tictactoe.ApplyMove(*room, cell, mark)
	if err != nil {
		log.Info("illegal move ignored", "reason", err)
		return that.Session(), fmt.Errorf("%w: %w", apperror.ErrIllegalMove, err)
	}

	stored, err := that.write(ctx, &next)
	if err != nil {
		return that.Session(), err
	}

	if stored.IsTerminal() {
		log.Info("game finished", "outcome", stored.Outcome.Status, "winner", stored.WinnerName)
	}

	return that.replaceView(*stored), nil
}

// Restart resets the board for another game in the same room.
func (that *Controller) Restart(ctx context.Context) (entity.Session, error) {
	current, _, err := that.seated()
	if err != nil {
		return current, err
	}

	room, err := that.fetch(ctx, current.RoomID)
	if err != nil {
		return that.Session(), err
	}

	next := room.Restart()

	stored, err := that.write(ctx, &next)
	if err != nil {
		return that.Session(), err
	}

	that.logger.Info("game restarted", "roomID", stored.ID)

	return that.replaceView(*stored), nil
}

// SendMessage appends a chat line to the room.
func (that *Controller) SendMessage(ctx context.Context, text string) (entity.Session, error) {
	current := that.Session()
	if !current.IsJoined() {
		return current, apperror.ErrNotJoined
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return current, nil
	}

	author := current.Name
	if author == "" {
		author = string(current.Identity)
	}

	room, err := that.fetch(ctx, current.RoomID)
	if err != nil {
		return that.Session(), err
	}

	next := room.WithMessage(entity.Message{
		ID:     pkg.GenerateMessageID(),
		Author: author,
		Text:   text,
		SentAt: time.Now().UTC(),
	})

	stored, err := that.write(ctx, &next)
	if err != nil {
		return that.Session(), err
	}

	return that.replaceView(*stored), nil
}

// Refresh reads the room once and replaces the local view.
func (that *Controller) Refresh(ctx context.Context) (entity.Session, error) {
	current := that.Session()
	if !current.IsJoined() {
		return current, apperror.ErrNotJoined
	}

	if _, err := that.fetch(ctx, current.RoomID); err != nil {
		return that.Session(), err
	}

	return that.Session(), nil
}

// LeaveRoom stops following the room and forgets the session. The shared room is
// left as is so the other participant can keep playing and the caller can rejoin.
func (that *Controller) LeaveRoom() entity.Session {
	that.mu.Lock()

	roomID := that.session.RoomID
	if that.stopWatch != nil {
		that.stopWatch()
		that.stopWatch = nil
	}
	that.generation++
	that.session = entity.Session{}
	session := that.session
	that.publish(session)

	that.mu.Unlock()

	if roomID != "" {
		that.logger.Info("left room", "roomID", roomID)
	}

	return session
}

// Close stops the watch loop.
func (that *Controller) Close() {
	that.LeaveRoom()
}

func (that *Controller) lookupRoom(ctx context.Context, roomID string) (*entity.Room, error) {
	if that.Session().IsJoined() {
		return nil, apperror.ErrAlreadyJoined
	}

	id := pkg.NormalizeRoomID(roomID)
	if !pkg.IsValidRoomID(id) {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidRoomID, roomID)
	}

	room, err := that.channel.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

func (that *Controller) seated() (entity.Session, entity.Mark, error) {
	current := that.Session()
	if !current.IsJoined() {
		return current, entity.EmptyCell, apperror.ErrNotJoined
	}

	mark, ok := current.Identity.Mark()
	if !ok {
		return current, entity.EmptyCell, apperror.ErrNotSeated
	}

	return current, mark, nil
}

// fetch reads the latest room and adopts it as the local view.
func (that *Controller) fetch(ctx context.Context, roomID string) (*entity.Room, error) {
	room, err := that.channel.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	that.replaceView(*room)

	return room, nil
}

func (that *Controller) write(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	stored, err := that.channel.Update(ctx, room)
	if err == nil {
		return stored, nil
	}

	if errors.Is(err, apperror.ErrConflict) {
		that.logger.Warn("room changed before the write landed", "roomID", room.ID, "version", room.Version)

		// pick up the winning write; the caller decides whether to try again
		if latest, readErr := that.channel.GetByID(ctx, room.ID); readErr == nil {
			that.replaceView(*latest)
		}
	}

	return nil, fmt.Errorf("failed to update room: %w", err)
}

// enter installs a freshly joined session and starts following its room.
func (that *Controller) enter(session entity.Session) entity.Session {
	watchCtx, cancel := context.WithCancel(context.Background())

	that.mu.Lock()
	if that.stopWatch != nil {
		that.stopWatch()
	}
	that.generation++
	generation := that.generation
	that.session = session
	that.stopWatch = cancel
	that.publish(session)
	that.mu.Unlock()

	if that.watcher != nil {
		go that.follow(watchCtx, generation, session.RoomID)
	}

	return session
}

func (that *Controller) follow(ctx context.Context, generation uint64, roomID string) {
	log := that.logger.With("method", "follow", "roomID", roomID)

	snapshots, err := that.watcher.Watch(ctx, roomID)
	if err != nil {
		log.Warn("failed to watch room, updates will only arrive on refresh", "error", err)
		return
	}

	for room := range snapshots {
		that.applySnapshot(generation, room)
	}

	log.Debug("stopped watching room")
}

// applySnapshot replaces the view unless the snapshot belongs to an earlier
// session or is older than what is already shown.
func (that *Controller) applySnapshot(generation uint64, room *entity.Room) {
	if room == nil {
		return
	}

	that.mu.Lock()
	if generation != that.generation || room.ID != that.session.RoomID || room.Version < that.session.View.Version {
		that.mu.Unlock()
		return
	}

	that.session = that.session.WithView(*room)
	that.publish(that.session)
	that.mu.Unlock()
}

func (that *Controller) replaceView(room entity.Room) entity.Session {
	that.mu.Lock()
	if room.ID != that.session.RoomID || room.Version < that.session.View.Version {
		session := that.session
		that.mu.Unlock()

		return session
	}

	that.session = that.session.WithView(room)
	session := that.session
	that.publish(session)
	that.mu.Unlock()

	return session
}

// publish never blocks. Callers hold mu so updates keep their order.
func (that *Controller) publish(session entity.Session) {
	select {
	case that.updates <- session:
		return
	default:
	}

	select {
	case <-that.updates:
	default:
	}

	select {
	case that.updates <- session:
	default:
	}
}
