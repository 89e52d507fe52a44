package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"peoplecounter/internal/config"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/repository/sqlite"
	"peoplecounter/internal/route"
	"peoplecounter/internal/service/ai"
	"peoplecounter/internal/service/job"
	"peoplecounter/internal/service/storage"
	"peoplecounter/internal/service/websocket"
	"peoplecounter/internal/video"
)

const (
	jobShutdownTimeout  = 30 * time.Second
	httpShutdownTimeout = 5 * time.Second
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	db       io.Closer
	detector io.Closer
	previews *storage.PreviewBuffer
	hub      *websocket.HubService
	manager  *job.Manager
	server   *http.Server

	jobTimeout  time.Duration
	httpTimeout time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewApp loads configuration and builds every service. Nothing runs until Run.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	repo := sqlite.NewJobRepository(db)
	if n, err := repo.MarkInterrupted(time.Now()); err != nil {
		log.Warning("Failed to close stale jobs: %v", err)
	} else if n > 0 {
		log.Warning("Marked %d jobs from a previous run as interrupted", n)
	}

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	previews, err := storage.NewPreviewBuffer(cfg, log)
	if err != nil {
		detector.Close()
		db.Close()
		return nil, err
	}

	placeholder, err := video.PlaceholderJPEG()
	if err != nil {
		log.Warning("Failed to render preview placeholder: %v", err)
	}

	m := metrics.New()
	hub := websocket.NewHubService(log)
	m.RegisterGaugeFunc("peoplecounter_progress_viewers", "Connected progress websocket viewers",
		func() float64 { return float64(hub.GetClientCount()) })
	media := &videoMedia{config: cfg, detector: detector, previews: previews, logger: log, metrics: m}
	manager := job.NewManager(media, repo, hub, cfg, log, m)

	a := &App{
		config:   cfg,
		logger:   log,
		metrics:  m,
		db:       db,
		detector: detector,
		previews: previews,
		hub:      hub,
		manager:  manager,
		stop:     make(chan struct{}),

		jobTimeout:  jobShutdownTimeout,
		httpTimeout: httpShutdownTimeout,
	}

	router := route.SetupRoutes(route.Deps{
		Config:      cfg,
		Logger:      log,
		Metrics:     m,
		Jobs:        manager,
		Repo:        repo,
		Previews:    previews,
		Hub:         hub,
		Placeholder: placeholder,
		Shutdown:    a.requestStop,
	})
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) requestStop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Run serves HTTP until SIGINT, SIGTERM or POST /exit, then shuts down
// the running job and every service.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go a.hub.Run()

	fmt.Printf("🚀 People Counter Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Uploads: %s  Outputs: %s\n", a.config.UploadDir, a.config.OutputDir)
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)

	errc := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Signal received, shutting down")
	case <-a.stop:
		a.logger.Info("Exit requested, shutting down")
	case serveErr = <-errc:
	}

	return errors.Join(serveErr, a.shutdown())
}

// shutdown stops the running job first so its output is finalized, then
// drains HTTP. The detector and the database are closed only once the job
// worker has exited.
func (a *App) shutdown() error {
	var errs []error

	jobCtx, cancelJob := context.WithTimeout(context.Background(), a.jobTimeout)
	defer cancelJob()
	jobStopped := true
	if err := a.manager.Shutdown(jobCtx); err != nil {
		jobStopped = false
		errs = append(errs, fmt.Errorf("job shutdown: %w", err))
	}

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), a.httpTimeout)
	defer cancelHTTP()
	if err := a.server.Shutdown(httpCtx); err != nil {
		// MJPEG viewers never go idle on their own.
		a.logger.Warning("HTTP drain incomplete, closing remaining connections: %v", err)
		if err := a.server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("http close: %w", err))
		}
	}
	a.hub.Stop()

	if !jobStopped {
		a.logger.Error("Job worker still running, leaving detector and database open")
		return errors.Join(errs...)
	}

	if err := a.detector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("Server stopped")
	return errors.Join(errs...)
}
