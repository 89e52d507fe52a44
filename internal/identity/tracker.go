// Package identity assigns persistent integer identifiers to detections
// across consecutive detector passes.
package identity

import (
	"image"
	"sort"
	"sync"
)

type track struct {
	id   int
	rect image.Rectangle
	lost int
}

// Tracker matches each new set of boxes against the previous one by
// intersection-over-union. A track that goes unmatched survives maxLost
// passes before its identifier is retired; identifiers are never reused.
type Tracker struct {
	iouThreshold float64
	maxLost      int

	mu     sync.Mutex
	nextID int
	tracks []*track
}

// NewTracker creates a tracker. Boxes overlapping a track by less than
// iouThreshold start a new identifier.
func NewTracker(iouThreshold float64, maxLost int) *Tracker {
	return &Tracker{
		iouThreshold: iouThreshold,
		maxLost:      maxLost,
		nextID:       1,
	}
}

type candidate struct {
	track, det int
	iou        float64
}

// Update returns one identifier per rect, in the same order.
func (t *Tracker) Update(rects []image.Rectangle) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var candidates []candidate
	for ti, tr := range t.tracks {
		for di, r := range rects {
			if v := IoU(tr.rect, r); v >= t.iouThreshold && v > 0 {
				candidates = append(candidates, candidate{track: ti, det: di, iou: v})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].iou > candidates[j].iou
	})

	ids := make([]int, len(rects))
	trackUsed := make([]bool, len(t.tracks))
	detUsed := make([]bool, len(rects))
	for _, c := range candidates {
		if trackUsed[c.track] || detUsed[c.det] {
			continue
		}
		trackUsed[c.track] = true
		detUsed[c.det] = true

		tr := t.tracks[c.track]
		tr.rect = rects[c.det]
		tr.lost = 0
		ids[c.det] = tr.id
	}

	kept := t.tracks[:0]
	for ti, tr := range t.tracks {
		if !trackUsed[ti] {
			tr.lost++
			if tr.lost > t.maxLost {
				continue
			}
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	for di, r := range rects {
		if detUsed[di] {
			continue
		}
		tr := &track{id: t.nextID, rect: r}
		t.nextID++
		t.tracks = append(t.tracks, tr)
		ids[di] = tr.id
	}

	return ids
}

// IoU is the intersection-over-union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
