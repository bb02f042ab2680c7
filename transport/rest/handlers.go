package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// maxBodyBytes fits a room carrying entity.MaxMessages of the longest allowed
// messages even when every character is JSON-escaped.
const maxBodyBytes = 256 << 10

type roomService interface {
	CreateRoom(ctx context.Context, room *entity.Room) (*entity.Room, error)
	GetRoom(ctx context.Context, id string) (*entity.Room, error)
	UpdateRoom(ctx context.Context, id string, room *entity.Room) (*entity.Room, error)
	PostMessage(ctx context.Context, id, author, text string) (*entity.Room, error)
	DeleteRoom(ctx context.Context, id string) error

	Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error)
}

// MessageRequest is the body of POST /api/room/{id}/messages.
type MessageRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	logger *slog.Logger
	rooms  roomService
}

// NewRouter wires the room store endpoints.
func NewRouter(logger *slog.Logger, rooms roomService) http.Handler {
	room := &handlers{
		logger: logger.With("component", "rest"),
		rooms:  rooms,
	}

	router := mux.NewRouter()
	router.HandleFunc("/ping", pingHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/room").Subrouter()
	api.HandleFunc("", room.createRoom).Methods(http.MethodPost)
	api.HandleFunc("/{id}", room.getRoom).Methods(http.MethodGet)
	api.HandleFunc("/{id}", room.updateRoom).Methods(http.MethodPut)
	api.HandleFunc("/{id}", room.deleteRoom).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/messages", room.postMessage).Methods(http.MethodPost)
	api.HandleFunc("/{id}/events", room.streamEvents).Methods(http.MethodGet)

	return router
}

func (that *handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var room entity.Room
	if err := decodeBody(w, r, &room); err != nil {
		that.writeError(w, r, err)
		return
	}

	created, err := that.rooms.CreateRoom(r.Context(), &room)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, created)
}

func (that *handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := that.rooms.GetRoom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, room)
}

func (that *handlers) updateRoom(w http.ResponseWriter, r *http.Request) {
	var room entity.Room
	if err := decodeBody(w, r, &room); err != nil {
		that.writeError(w, r, err)
		return
	}

	updated, err := that.rooms.UpdateRoom(r.Context(), mux.Vars(r)["id"], &room)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, updated)
}

func (that *handlers) postMessage(w http.ResponseWriter, r *http.Request) {
	var request MessageRequest
	if err := decodeBody(w, r, &request); err != nil {
		that.writeError(w, r, err)
		return
	}

	room, err := that.rooms.PostMessage(r.Context(), mux.Vars(r)["id"], request.Author, request.Text)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, room)
}

func (that *handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := that.rooms.DeleteRoom(r.Context(), mux.Vars(r)["id"]); err != nil {
		that.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidRoom, err)
	}

	return nil
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func (that *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	log := that.logger.With("method", r.Method, "path", r.URL.Path, "status", status)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "error", err)
	}

	that.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrRoomExists), errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrInvalidRoomID),
		errors.Is(err, apperror.ErrInvalidRoom),
		errors.Is(err, apperror.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
