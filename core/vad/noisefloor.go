package vad

import "sort"

const (
	noiseFloorHistorySize = 50
	noiseFloorMinSamples  = 5
)

// noiseFloor tracks the ambient energy level from frames classified as
// non-speech, smoothing with a median so brief spikes do not drag the
// adaptive threshold around.
type noiseFloor struct {
	history []float64
}

func newNoiseFloor() *noiseFloor {
	return &noiseFloor{}
}

func (n *noiseFloor) observe(rms float64) {
	n.history = append(n.history, rms)
	if len(n.history) > noiseFloorHistorySize {
		n.history = n.history[len(n.history)-noiseFloorHistorySize:]
	}
}

func (n *noiseFloor) current() (float64, bool) {
	if len(n.history) < noiseFloorMinSamples {
		return 0, false
	}

	sorted := make([]float64, len(n.history))
	copy(sorted, n.history)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

func (n *noiseFloor) reset() {
	n.history = nil
}
