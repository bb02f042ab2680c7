package roomclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const defaultTimeout = 10 * time.Second

// Client talks to the REST room store. It satisfies session.SyncChannel and its
// Subscribe method can back a session.WatchFunc.
type Client struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

func New(logger *slog.Logger, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		logger:  logger.With("component", "roomClient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		dialer:  websocket.DefaultDialer,
	}
}

func (that *Client) Create(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	var created entity.Room

	if err := that.do(ctx, http.MethodPost, "/api/room", room, &created, apperror.ErrRoomExists); err != nil {
		return nil, err
	}

	return &created, nil
}

func (that *Client) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	var room entity.Room

	if err := that.do(ctx, http.MethodGet, roomPath(id), nil, &room, nil); err != nil {
		return nil, err
	}

	return &room, nil
}

func (that *Client) Update(ctx context.Context, room *entity.Room) (*entity.Room, error) {
	var updated entity.Room

	if err := that.do(ctx, http.MethodPut, roomPath(room.ID), room, &updated, apperror.ErrConflict); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (that *Client) PostMessage(ctx context.Context, id, author, text string) (*entity.Room, error) {
	var room entity.Room

	body := map[string]string{"author": author, "text": text}
	if err := that.do(ctx, http.MethodPost, roomPath(id)+"/messages", body, &room, apperror.ErrConflict); err != nil {
		return nil, err
	}

	return &room, nil
}

func (that *Client) DeleteByID(ctx context.Context, id string) error {
	if err := that.do(ctx, http.MethodDelete, roomPath(id), nil, nil, nil); err != nil {
		return err
	}

	return nil
}

// Subscribe follows the room's websocket event stream. The channel is closed
// when ctx is canceled or the connection drops.
func (that *Client) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, error) {
	log := that.logger.With("method", "Subscribe", "roomID", id)

	endpoint, err := that.eventsURL(id)
	if err != nil {
		return nil, err
	}

	conn, resp, err := that.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("failed to subscribe: %w", responseError(resp, nil))
		}

		return nil, fmt.Errorf("failed to subscribe: %w: %w", apperror.ErrStoreUnavailable, err)
	}

	updates := make(chan *entity.Room, 1)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(updates)

		for {
			var room entity.Room
			if err := conn.ReadJSON(&room); err != nil {
				if ctx.Err() == nil {
					log.Warn("room event stream closed", "error", err)
				}
				return
			}

			select {
			case updates <- &room:
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, nil
}

func (that *Client) do(ctx context.Context, method, path string, body, result any, conflict error) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, that.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := that.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp, conflict)
	}

	if result == nil {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// statusError carries the server's message as is and unwraps to the matching
// sentinel.
type statusError struct {
	sentinel error
	detail   string
}

func (that *statusError) Error() string { return that.detail }

func (that *statusError) Unwrap() error { return that.sentinel }

// responseError maps a failed response back to the store's sentinel errors.
// A 409 means conflict for the caller's operation. Server side wrapping in
// front of the sentinel's text is dropped so callers add their own context once.
func responseError(resp *http.Response, conflict error) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	detail := body.Error
	if detail == "" {
		detail = resp.Status
	}

	var sentinel error

	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = apperror.ErrRoomNotFound
	case http.StatusConflict:
		sentinel = conflict
		if sentinel == nil {
			sentinel = apperror.ErrConflict
		}
	case http.StatusBadRequest:
		sentinel = apperror.ErrInvalidRoom
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		sentinel = apperror.ErrStoreUnavailable
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}

	if at := strings.Index(detail, sentinel.Error()); at >= 0 {
		return &statusError{sentinel: sentinel, detail: detail[at:]}
	}

	return fmt.Errorf("%w: %s", sentinel, detail)
}

func (that *Client) eventsURL(id string) (string, error) {
	endpoint, err := url.Parse(that.baseURL + roomPath(id) + "/events")
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}

	return endpoint.String(), nil
}

func roomPath(id string) string {
	return "/api/room/" + url.PathEscape(id)
}
