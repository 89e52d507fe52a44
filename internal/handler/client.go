package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"peoplecounter/internal/logger"
	"peoplecounter/internal/session"
)

const viewerReadTimeout = 60 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerHub tracks connected progress viewers.
type ViewerHub interface {
	Register(conn *websocket.Conn)
	Unregister(conn *websocket.Conn)
}

// SnapshotSource reports the current job progress.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// ProgressWebsocketHandler sends the current progress to a new viewer and
// then registers it with the hub to receive live updates.
func ProgressWebsocketHandler(hub ViewerHub, jobs SnapshotSource, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		initial, err := json.Marshal(jobs.Snapshot())
		if err == nil {
			err = connection.WriteMessage(websocket.TextMessage, initial)
		}
		if err != nil {
			logger.Error("Error sending initial progress: %v", err)
			connection.Close()
			return
		}

		defer connection.Close()
		hub.Register(connection)
		defer hub.Unregister(connection)

		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
			return nil
		})

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		}
	}
}
