package counting

// Mode is the decision taken by the Sampler for one frame.
type Mode int

const (
	// FullProcess runs detection and updates the tracking state.
	FullProcess Mode = iota
	// ReuseLast draws the stored state onto the frame without detection.
	ReuseLast
)

func (m Mode) String() string {
	switch m {
	case FullProcess:
		return "full"
	case ReuseLast:
		return "reuse"
	}
	return "unknown"
}

// Sampler runs detection on one frame in every skip+1. The counter starts at
// zero and is incremented before the decision, so with skip=3 frames 4, 8,
// 12 ... (1-indexed) are full-process frames.
type Sampler struct {
	skip    int
	counter int
}

// NewSampler creates a sampler. Negative skip is treated as zero.
func NewSampler(skip int) *Sampler {
	if skip < 0 {
		skip = 0
	}
	return &Sampler{skip: skip}
}

// Next advances the counter and returns the mode for the new frame.
func (s *Sampler) Next() Mode {
	s.counter++
	if s.counter%(s.skip+1) == 0 {
		return FullProcess
	}
	return ReuseLast
}

// Frames is the number of frames seen so far.
func (s *Sampler) Frames() int {
	return s.counter
}
