package route

import (
	"net/http"
	"os"
	"path/filepath"

	"peoplecounter/internal/config"
	"peoplecounter/internal/handler"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/middleware"
	"peoplecounter/internal/repository"
	"peoplecounter/internal/service/job"
	"peoplecounter/internal/service/storage"
	"peoplecounter/internal/service/websocket"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Jobs        *job.Manager
	Repo        repository.JobRepository
	Previews    *storage.PreviewBuffer
	Hub         *websocket.HubService
	Placeholder []byte
	Shutdown    func()
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving and API endpoints,
// and wraps the mux with request logging.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(d.Config.StaticDir))))

	// Job control
	mux.HandleFunc("POST /upload", handler.UploadHandler(d.Jobs, d.Config, d.Logger))
	mux.HandleFunc("GET /progress", handler.ProgressHandler(d.Jobs))
	mux.HandleFunc("POST /cancel", handler.CancelHandler(d.Jobs, d.Logger))
	mux.HandleFunc("GET /download/{filename}", handler.DownloadHandler(d.Config))

	// Previews
	mux.Handle("GET /preview/stream", d.Previews.Stream())
	mux.HandleFunc("GET /preview/latest", handler.LatestPreviewHandler(d.Previews, d.Placeholder))
	mux.HandleFunc("GET /preview/{job}", handler.PreviewHandler(d.Previews, d.Placeholder, d.Logger))

	// API endpoints
	mux.HandleFunc("GET /api/progress/ws", handler.ProgressWebsocketHandler(d.Hub, d.Jobs, d.Logger))
	mux.HandleFunc("GET /api/jobs", handler.JobsHandler(d.Repo, d.Logger))
	mux.HandleFunc("GET /api/jobs/{id}", handler.JobHandler(d.Repo, d.Logger))
	mux.HandleFunc("DELETE /api/jobs/{id}", handler.DeleteJobHandler(d.Repo, d.Previews, d.Config, d.Logger))
	mux.Handle("GET /metrics", d.Metrics.Handler())

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(d.Config))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(d.Logger))

	mux.HandleFunc("POST /exit", handler.ExitHandler(d.Shutdown, d.Logger))

	// Automatic HTML handler mapping for example: /history -> <static>/history.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(d.Config.StaticDir))

	return middleware.LoggingMiddleware(d.Logger, mux)
}
