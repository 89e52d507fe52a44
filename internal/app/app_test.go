package app

import (
	"image"
	"image/color"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplecounter/internal/config"
	"peoplecounter/internal/counting"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/pipeline"
	"peoplecounter/internal/service/job"
	"peoplecounter/internal/service/storage"
	"peoplecounter/internal/service/websocket"
)

type closeLog struct {
	mu    sync.Mutex
	order []string
}

func (l *closeLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

func (l *closeLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

type namedCloser struct {
	name string
	log  *closeLog
}

func (c namedCloser) Close() error {
	c.log.add(c.name)
	return nil
}

type testFrame struct{}

func (testFrame) Size() image.Point                                           { return image.Pt(64, 48) }
func (testFrame) Line(image.Point, image.Point, color.RGBA, int) error        { return nil }
func (testFrame) Rectangle(image.Rectangle, color.RGBA, int) error            { return nil }
func (testFrame) PutText(string, image.Point, float64, color.RGBA, int) error { return nil }
func (testFrame) Close() error                                                { return nil }

// endlessSource yields frames until the job is cancelled. gate, when set,
// blocks every read.
type endlessSource struct {
	gate chan struct{}
}

func (s *endlessSource) Info() pipeline.StreamInfo {
	return pipeline.StreamInfo{FPS: 25, FrameCount: 1 << 30, Width: 64, Height: 48}
}

func (s *endlessSource) Read() (pipeline.Frame, error) {
	if s.gate != nil {
		<-s.gate
	}
	time.Sleep(time.Millisecond)
	return testFrame{}, nil
}

func (s *endlessSource) Close() error { return nil }

type recordingSink struct {
	log *closeLog
}

func (s *recordingSink) Write(pipeline.Frame) error { return nil }
func (s *recordingSink) Close() error {
	s.log.add("sink")
	return nil
}

type emptyDetector struct{}

func (emptyDetector) Detect(pipeline.Frame) counting.Detection { return nil }

type testMedia struct {
	src  *endlessSource
	sink *recordingSink
}

func (m *testMedia) OpenSource(string) (job.Source, error) { return m.src, nil }
func (m *testMedia) CreateSink(string, float64, int, int) (job.Sink, error) {
	return m.sink, nil
}
func (m *testMedia) NewDetector() pipeline.Detector     { return emptyDetector{} }
func (m *testMedia) NewPreview(string) pipeline.Preview { return nil }

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		PreviewDir:      t.TempDir(),
		SkipFrames:      3,
		EntryLineRatio:  0.3,
		MetersPerPixel:  0.026,
		NominalFPS:      30,
		PreviewInterval: time.Second,
	}
}

// newTestApp serves an MJPEG stream with one connected viewer that never
// receives a frame, and runs a job on media.
func newTestApp(t *testing.T, media *testMedia, log *closeLog) *App {
	t.Helper()
	cfg := testConfig(t)

	previews, err := storage.NewPreviewBuffer(cfg, logger.Discard())
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.Handle("/preview/stream", previews.Stream())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	active := make(chan struct{}, 1)
	server := &http.Server{
		Handler: mux,
		ConnState: func(_ net.Conn, state http.ConnState) {
			if state == http.StateActive {
				select {
				case active <- struct{}{}:
				default:
				}
			}
		},
	}
	go server.Serve(ln)

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/preview/stream")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}()
	select {
	case <-active:
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not connect")
	}

	manager := job.NewManager(media, nil, nil, cfg, logger.Discard(), nil)
	_, err = manager.Start("input.mp4", "output.mp4")
	require.NoError(t, err)

	return &App{
		config:      cfg,
		logger:      logger.Discard(),
		db:          namedCloser{name: "db", log: log},
		detector:    namedCloser{name: "detector", log: log},
		previews:    previews,
		hub:         websocket.NewHubService(logger.Discard()),
		manager:     manager,
		server:      server,
		stop:        make(chan struct{}),
		jobTimeout:  5 * time.Second,
		httpTimeout: 100 * time.Millisecond,
	}
}

func TestShutdown_FinalizesJobDespiteIdleStreamViewer(t *testing.T) {
	log := &closeLog{}
	media := &testMedia{src: &endlessSource{}, sink: &recordingSink{log: log}}
	a := newTestApp(t, media, log)

	start := time.Now()
	err := a.shutdown()

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, []string{"sink", "detector", "db"}, log.get())

	snap := a.manager.Snapshot()
	assert.False(t, snap.Processing)
	assert.False(t, snap.Completed)
}

func TestShutdown_KeepsResourcesOpenWhileJobRuns(t *testing.T) {
	log := &closeLog{}
	gate := make(chan struct{})
	media := &testMedia{src: &endlessSource{gate: gate}, sink: &recordingSink{log: log}}
	a := newTestApp(t, media, log)
	a.jobTimeout = 50 * time.Millisecond

	err := a.shutdown()

	require.Error(t, err)
	assert.Empty(t, log.get())

	close(gate)
	a.manager.Wait()
	assert.Equal(t, []string{"sink"}, log.get())
}
