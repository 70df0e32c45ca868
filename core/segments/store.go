// Package segments reconciles the overlapping partial and final transcript
// fragments a streaming transcription provider emits into one canonical
// utterance text.
package segments

import (
	"sort"
	"sync"
	"time"
)

// Segment is a single transcript fragment covering the half-open audio time
// range [Start, End).
type Segment struct {
	Start      time.Duration
	End        time.Duration
	Text       string
	IsFinal    bool
	Speaker    *int
	ReceivedAt time.Time
}

type timeRange struct {
	start time.Duration
	end   time.Duration
}

func (r timeRange) overlaps(other timeRange) bool {
	return r.start < other.end && other.start < r.end
}

// Store keeps transcript segments keyed by their time range.
//
// A final segment always wins over any overlapping partial; a partial never
// replaces a stored final at the same or overlapping range.
type Store struct {
	mu       sync.Mutex
	segments map[timeRange]Segment
}

func NewStore() *Store {
	return &Store{segments: map[timeRange]Segment{}}
}

// Upsert stores the segment, resolving conflicts with anything already stored
// at an overlapping range.
func (s *Store) Upsert(segment Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if segment.ReceivedAt.IsZero() {
		segment.ReceivedAt = time.Now()
	}

	key := timeRange{start: segment.Start, end: segment.End}
	if segment.IsFinal {
		for storedKey := range s.segments {
			if storedKey.overlaps(key) || storedKey == key {
				delete(s.segments, storedKey)
			}
		}
		s.segments[key] = segment
		return
	}

	for storedKey, stored := range s.segments {
		if !stored.IsFinal {
			continue
		}
		if storedKey == key || storedKey.overlaps(key) {
			return
		}
	}
	s.segments[key] = segment
}

// Segments returns the stored segments ordered by start time.
func (s *Store) Segments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]Segment, 0, len(s.segments))
	for _, segment := range s.segments {
		ordered = append(ordered, segment)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Start == ordered[j].Start {
			return ordered[i].End < ordered[j].End
		}
		return ordered[i].Start < ordered[j].Start
	})
	return ordered
}

// FullTranscript concatenates the stored segments in time order, eliding the
// trailing words of each segment that the provider re-sent as the leading
// words of the next one.
func (s *Store) FullTranscript() string {
	ordered := s.Segments()

	transcript := ""
	for _, segment := range ordered {
		transcript = fuse(transcript, segment.Text)
	}
	return transcript
}

// Clear drops all stored segments.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = map[timeRange]Segment{}
}

// Len reports the number of stored segments.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}
