package counting

import "image"

// EntryLine is the vertical boundary separating the entry zone (x > X) from
// the rest of the frame.
type EntryLine struct {
	X     int
	Start image.Point
	End   image.Point
}

// NewEntryLine derives the line from the frame size. The x position is
// truncated, so a 333 px wide frame with ratio 0.3 puts the line at 99.
func NewEntryLine(width, height int, ratio float64) EntryLine {
	x := int(float64(width) * ratio)
	return EntryLineAt(x, height)
}

// EntryLineAt builds a full-height line at x.
func EntryLineAt(x, height int) EntryLine {
	return EntryLine{
		X:     x,
		Start: image.Pt(x, 0),
		End:   image.Pt(x, height),
	}
}

// Contains reports whether p lies strictly past the line.
func (l EntryLine) Contains(p image.Point) bool {
	return p.X > l.X
}

// ZoneCounter reports how many tracked identifiers are inside the entry
// zone. The count is live occupancy recomputed on every full-process frame,
// not a tally of crossing events.
type ZoneCounter struct {
	ratio  float64
	line   EntryLine
	hasSet bool
	count  int
}

// NewZoneCounter creates a counter whose line is placed at ratio of the frame
// width once the frame size is known.
func NewZoneCounter(ratio float64) *ZoneCounter {
	return &ZoneCounter{ratio: ratio}
}

// Establish derives the line from the frame size unless it is already set.
// It returns the line in effect.
func (z *ZoneCounter) Establish(width, height int) EntryLine {
	if !z.hasSet {
		z.SetLine(NewEntryLine(width, height, z.ratio))
	}
	return z.line
}

// SetLine fixes the line explicitly.
func (z *ZoneCounter) SetLine(line EntryLine) {
	z.line = line
	z.hasSet = true
}

// Line returns the line and whether it has been established.
func (z *ZoneCounter) Line() (EntryLine, bool) {
	return z.line, z.hasSet
}

// Update recomputes how many identifiers are in the entry zone and returns
// the count. Without a line the computation is deferred and the previous count is
// returned unchanged.
func (z *ZoneCounter) Update(boxes map[int]Box) int {
	if !z.hasSet {
		return z.count
	}

	count := 0
	for _, b := range boxes {
		if z.line.Contains(b.Center()) {
			count++
		}
	}
	z.count = count
	return z.count
}

// Count is the entry count from the last Update.
func (z *ZoneCounter) Count() int {
	return z.count
}
