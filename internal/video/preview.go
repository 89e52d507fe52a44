package video

import (
	"fmt"

	"gocv.io/x/gocv"

	"peoplecounter/internal/pipeline"
)

// PlaceholderSize is the edge length of the blank preview image.
const PlaceholderSize = 100

// JPEGStore keeps the latest preview image of a job.
type JPEGStore interface {
	Save(jobID string, jpeg []byte) error
}

// Preview encodes frames as JPEG and hands them to a store.
type Preview struct {
	store JPEGStore
	jobID string
}

// NewPreview publishes previews of jobID into store.
func NewPreview(store JPEGStore, jobID string) *Preview {
	return &Preview{store: store, jobID: jobID}
}

func (p *Preview) Publish(f pipeline.Frame) error {
	mat, err := asMat(f)
	if err != nil {
		return err
	}
	data, err := EncodeJPEG(mat)
	if err != nil {
		return err
	}
	return p.store.Save(p.jobID, data)
}

// EncodeJPEG copies mat out as a JPEG buffer.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %v", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// PlaceholderJPEG is a black square served before any preview exists.
func PlaceholderJPEG() ([]byte, error) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), PlaceholderSize, PlaceholderSize, gocv.MatTypeCV8UC3)
	defer mat.Close()
	return EncodeJPEG(mat)
}
