package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// streamEvents sends the current room and then every accepted write as a JSON
// text frame until the client goes away.
func (that *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "streamEvents")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := mux.Vars(r)["id"]

	// subscribe before reading so no write falls between the two
	updates, err := that.rooms.Subscribe(ctx, id)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	current, err := that.rooms.GetRoom(ctx, id)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	log = log.With("roomID", current.ID, "remote", conn.RemoteAddr().String())
	log.Debug("websocket subscriber connected")

	go func() {
		defer cancel()

		// reading is only needed for control frames and to notice a closed peer
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("websocket subscriber read failed", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err = writeRoom(conn, current); err != nil {
		log.Warn("failed to send room", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			log.Debug("websocket subscriber disconnected")
			return
		case room, ok := <-updates:
			if !ok {
				return
			}

			if room.Version <= current.Version {
				continue
			}
			current = room

			if err = writeRoom(conn, room); err != nil {
				log.Warn("failed to send room", "error", err)
				return
			}
		case <-ticker.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

func writeRoom(conn *websocket.Conn, room any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return conn.WriteJSON(room)
}
