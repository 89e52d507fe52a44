package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"peoplecounter/internal/config"
	"peoplecounter/internal/logger"
)

const (
	// InputSize is the square network input of YOLOv8 exports.
	InputSize = 640
	// PersonClass is the COCO class index of "person".
	PersonClass = 0

	coordRows = 4
)

// DetectorService runs a YOLOv8 ONNX network and returns person boxes.
type DetectorService struct {
	net            gocv.Net
	modelPath      string
	scoreThreshold float32
	nmsThreshold   float32
	mu             sync.Mutex
	logger         *logger.Logger
}

// NewDetectorService loads the network from config.ModelPath.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	service := &DetectorService{
		modelPath:      config.ModelPath,
		scoreThreshold: float32(config.DetectionThreshold),
		nmsThreshold:   float32(config.NMSThreshold),
		logger:         logger,
	}

	if err := service.initializeNet(); err != nil {
		return nil, err
	}
	return service, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	net := gocv.ReadNetFromONNX(s.modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Detection network initialized from %s", s.modelPath)
	return nil
}

// DetectPeople returns the boxes of people in img, in img coordinates.
func (s *DetectorService) DetectPeople(img gocv.Mat) ([]image.Rectangle, error) {
	if img.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.net.Empty() {
		return nil, fmt.Errorf("detection network not initialized")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	if err := s.net.SetInput(blob, ""); err != nil {
		return nil, fmt.Errorf("failed to set network input: %v", err)
	}
	output := s.net.Forward("")
	defer output.Close()

	// Output shape is [1, 4+classes, candidates].
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= coordRows {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %v", err)
	}

	xScale := float32(img.Cols()) / InputSize
	yScale := float32(img.Rows()) / InputSize
	boxes, scores := decodePeople(data, dims[1], dims[2], xScale, yScale, s.scoreThreshold)
	return suppress(boxes, scores, s.scoreThreshold, s.nmsThreshold, image.Rect(0, 0, img.Cols(), img.Rows())), nil
}

// suppress runs non-maximum suppression and clips the kept boxes to bounds,
// highest score first.
func suppress(boxes []image.Rectangle, scores []float32, scoreThreshold, nmsThreshold float32, bounds image.Rectangle) []image.Rectangle {
	if len(boxes) == 0 {
		return nil
	}
	keep := gocv.NMSBoxes(boxes, scores, scoreThreshold, nmsThreshold)

	people := make([]image.Rectangle, 0, len(keep))
	for _, i := range keep {
		people = append(people, boxes[i].Intersect(bounds))
	}
	return people
}

// decodePeople reads person candidates from a channel-major YOLOv8 output.
// Row c of candidate i is at data[c*n+i]; rows 0-3 are cx, cy, w, h and the
// rest are class scores. A candidate is a person only when person is its
// best scoring class.
func decodePeople(data []float32, rows, n int, xScale, yScale, threshold float32) ([]image.Rectangle, []float32) {
	var boxes []image.Rectangle
	var scores []float32
	if len(data) < rows*n || coordRows+PersonClass >= rows {
		return nil, nil
	}

	for i := 0; i < n; i++ {
		classID, score := -1, float32(0)
		for c := 0; c < rows-coordRows; c++ {
			if v := data[(coordRows+c)*n+i]; classID < 0 || v > score {
				classID, score = c, v
			}
		}
		if classID != PersonClass || score < threshold {
			continue
		}
		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]

		x1 := int((cx - w/2) * xScale)
		y1 := int((cy - h/2) * yScale)
		x2 := int((cx + w/2) * xScale)
		y2 := int((cy + h/2) * yScale)

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		scores = append(scores, score)
	}
	return boxes, scores
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}
