package counting

// TrackRecord is the last known state of one identifier.
type TrackRecord struct {
	ID    int
	Box   Box
	Speed float64 // km/h, zero until the identifier has been seen twice

	// Measured is set once Speed has been computed from two positions.
	Measured bool
}

// Store owns the track records of one job. It keeps one frame of position
// history per identifier and forgets an identifier as soon as it is missing
// from a detection; re-identification is left to the detector.
type Store struct {
	motion  MotionEstimator
	records map[int]*TrackRecord
}

// NewStore creates an empty store using motion for speed updates.
func NewStore(motion MotionEstimator) *Store {
	return &Store{
		motion:  motion,
		records: make(map[int]*TrackRecord),
	}
}

// Update applies a full-process detection: speeds are recomputed for known
// identifiers, boxes are overwritten, and absent identifiers are pruned.
func (s *Store) Update(d Detection) {
	for _, t := range d {
		rec, ok := s.records[t.ID]
		if !ok {
			s.records[t.ID] = &TrackRecord{ID: t.ID, Box: t.Box}
			continue
		}
		rec.Speed = s.motion.Speed(rec.Box.Center(), t.Box.Center())
		rec.Measured = true
		rec.Box = t.Box
	}

	present := d.IDs()
	for id := range s.records {
		if _, ok := present[id]; !ok {
			delete(s.records, id)
		}
	}
}

// Get returns a copy of the record for id.
func (s *Store) Get(id int) (TrackRecord, bool) {
	rec, ok := s.records[id]
	if !ok {
		return TrackRecord{}, false
	}
	return *rec, true
}

// Len is the number of identifiers currently tracked.
func (s *Store) Len() int {
	return len(s.records)
}

// IDs returns the tracked identifiers in ascending order.
func (s *Store) IDs() []int {
	return sortedKeys(s.records)
}

// Boxes returns the current box of every tracked identifier.
func (s *Store) Boxes() map[int]Box {
	boxes := make(map[int]Box, len(s.records))
	for id, rec := range s.records {
		boxes[id] = rec.Box
	}
	return boxes
}

// Records returns copies of all records ordered by identifier.
func (s *Store) Records() []TrackRecord {
	out := make([]TrackRecord, 0, len(s.records))
	for _, id := range sortedKeys(s.records) {
		out = append(out, *s.records[id])
	}
	return out
}
