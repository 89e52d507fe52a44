package handler

import (
	"net/http"

	"peoplecounter/internal/logger"
)

// ExitHandler acknowledges the request and then asks the server to shut
// down. shutdown runs in its own goroutine after the response is written.
func ExitHandler(shutdown func(), logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		logger.Info("Shutdown requested by %s", r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "shutting down"})
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		go shutdown()
	}
}
