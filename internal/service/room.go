package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
)

const (
	MaxNameLength    = 32
	MaxMessageLength = 500

	maxAppendAttempts = 5
)

// RoomService is the passive room store exposed to clients. It checks that
// documents are well formed and leaves every game rule to the clients.
type RoomService interface {
	CreateRoom(ctx context.Context, room *entity.Room) (*entity.Room, error)
	GetRoom(ctx context.Context, id string) (*entity.Room, error)
	UpdateRoom(ctx context.Context, id string, room *entity.Room) (*entity.Room, error)
	PostMessage(ctx context.Context, id, author, text string) (*entity.Room, error)
	DeleteRoom(ctx context.Context, id string) error

	Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error)
}

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Update(ctx context.Context, room *entity.Room) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error)
}

type roomService struct {
	logger   *slog.Logger
	roomRepo roomRepo
}

func NewRoomService(logger *slog.Logger, roomRepo roomRepo) RoomService {
	return &roomService{
		logger:   logger.With("component", "roomService"),
		roomRepo: roomRepo,
	}
}

func (that *roomService) CreateRoom(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	log := that.logger.With("method", "CreateRoom")

	room.ID = pkg.NormalizeRoomID(room.ID)
	if err := validateRoom(room); err != nil {
		return nil, err
	}

	if room.Version != 0 {
		return nil, fmt.Errorf("%w: new rooms start at version 0", apperror.ErrInvalidRoom)
	}

	created, err := that.roomRepo.Create(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.Info("room created", "roomID", created.ID)

	return created, nil
}

func (that *roomService) GetRoom(ctx context.Context, id string) (*entity.Room, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	room, err := that.roomRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// UpdateRoom replaces the stored document. room.Version must be the version the
// caller read.
func (that *roomService) UpdateRoom(ctx context.Context, id string, room *entity.Room) (*entity.Room, error) {
	log := that.logger.With("method", "UpdateRoom")

	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	room.ID = pkg.NormalizeRoomID(room.ID)
	if room.ID != id {
		return nil, fmt.Errorf("%w: body id %q does not match %q", apperror.ErrInvalidRoom, room.ID, id)
	}

	if err = validateRoom(room); err != nil {
		return nil, err
	}

	updated, err := that.roomRepo.Update(ctx, room)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			log.Debug("stale write rejected", "roomID", id, "version", room.Version)
		}

		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	return updated, nil
}

// PostMessage appends a chat line, retrying when another write lands first.
func (that *roomService) PostMessage(ctx context.Context, id, author, text string) (*entity.Room, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)

	switch {
	case author == "":
		return nil, apperror.ErrEmptyName
	case utf8.RuneCountInString(author) > MaxNameLength:
		return nil, fmt.Errorf("%w: author is longer than %d characters", apperror.ErrInvalidRoom, MaxNameLength)
	case text == "":
		return nil, fmt.Errorf("%w: message text is empty", apperror.ErrInvalidRoom)
	case utf8.RuneCountInString(text) > MaxMessageLength:
		return nil, fmt.Errorf("%w: message is longer than %d characters", apperror.ErrInvalidRoom, MaxMessageLength)
	}

	message := entity.Message{
		ID:     pkg.GenerateMessageID(),
		Author: author,
		Text:   text,
		SentAt: time.Now().UTC(),
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		room, err := that.roomRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get room: %w", err)
		}

		next := room.WithMessage(message)

		updated, err := that.roomRepo.Update(ctx, &next)
		if errors.Is(err, apperror.ErrConflict) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to append message: %w", err)
		}

		return updated, nil
	}

	return nil, fmt.Errorf("failed to append message after %d attempts: %w", maxAppendAttempts, apperror.ErrConflict)
}

func (that *roomService) DeleteRoom(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	if err = that.roomRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	that.logger.Info("room deleted", "roomID", id)

	return nil
}

func (that *roomService) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	// the room has to exist before anyone can follow it
	if _, err = that.roomRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	updates, err := that.roomRepo.Subscribe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room: %w", err)
	}

	return updates, nil
}

func normalizeID(id string) (string, error) {
	normalized := pkg.NormalizeRoomID(id)
	if !pkg.IsValidRoomID(normalized) {
		return "", fmt.Errorf("%w: %q", apperror.ErrInvalidRoomID, id)
	}

	return normalized, nil
}

// validateRoom checks the document shape only.
func validateRoom(room *entity.Room) error {
	if !pkg.IsValidRoomID(room.ID) {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidRoomID, room.ID)
	}

	for cell, mark := range room.Board {
		if mark != entity.EmptyCell && !mark.IsValid() {
			return fmt.Errorf("%w: cell %d holds %q", apperror.ErrInvalidRoom, cell, mark)
		}
	}

	if !room.Turn.IsValid() {
		return fmt.Errorf("%w: turn %q", apperror.ErrInvalidRoom, room.Turn)
	}

	if strings.TrimSpace(room.PlayerX) == "" {
		return apperror.ErrEmptyName
	}

	if utf8.RuneCountInString(room.PlayerX) > MaxNameLength || utf8.RuneCountInString(room.PlayerO) > MaxNameLength {
		return fmt.Errorf("%w: player name is longer than %d characters", apperror.ErrInvalidRoom, MaxNameLength)
	}

	switch room.Outcome.Status {
	case entity.StatusInProgress, entity.StatusTie:
	case entity.StatusWin:
		if !room.Outcome.Mark.IsValid() {
			return fmt.Errorf("%w: win without a winning mark", apperror.ErrInvalidRoom)
		}
	default:
		return fmt.Errorf("%w: outcome %q", apperror.ErrInvalidRoom, room.Outcome.Status)
	}

	if len(room.Messages) > entity.MaxMessages {
		return fmt.Errorf("%w: more than %d messages", apperror.ErrInvalidRoom, entity.MaxMessages)
	}

	for _, message := range room.Messages {
		if utf8.RuneCountInString(message.Text) > MaxMessageLength || utf8.RuneCountInString(message.Author) > MaxNameLength {
			return fmt.Errorf("%w: message is longer than %d characters", apperror.ErrInvalidRoom, MaxMessageLength)
		}
	}

	return nil
}
