package apperror

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomExists    = errors.New("room already exists")
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrInvalidRoom   = errors.New("invalid room state")
	ErrEmptyName     = errors.New("player name is required")

	ErrIllegalMove  = errors.New("illegal move")
	ErrGameFinished = errors.New("game is already finished")
	ErrNotYourTurn  = errors.New("it's not your turn")

	ErrNotJoined     = errors.New("not joined to a room")
	ErrAlreadyJoined = errors.New("already joined to a room")
	ErrNotSeated     = errors.New("spectators can't change the room")

	// ErrConflict is returned when a write was based on a stale room version.
	ErrConflict         = errors.New("room was modified concurrently")
	ErrStoreUnavailable = errors.New("room store is unavailable")
)
