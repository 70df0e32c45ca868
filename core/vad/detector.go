// Package vad classifies captured audio frames as speech or non-speech using
// a hybrid of RMS energy and a spectral-change proxy, with an adaptive noise
// floor.
package vad

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	// sampleStride subsamples the frame for the RMS computation, keeping the
	// per-frame cost constant regardless of frame size.
	sampleStride = 4

	defaultWindowSize      = 10
	defaultMinActiveFrames = 3

	defaultBaseThreshold = 0.012
	defaultMargin        = 0.004
	defaultMinThreshold  = 0.008
	defaultMaxThreshold  = 0.2

	// spectralRatio scales the energy threshold when comparing against the
	// spectral-change signal.
	spectralRatio = 0.75

	minSensitivity = 0.3
	maxSensitivity = 3.0
)

// Decision is the per-frame classification result.
type Decision struct {
	Active   bool
	RMS      float64
	Spectral float64

	// Threshold is the effective threshold the frame was judged against.
	Threshold float64
}

type Detector struct {
	mu sync.Mutex

	sensitivity float64
	adaptive    bool

	noiseFloor *noiseFloor

	window          []bool
	windowSize      int
	minActiveFrames int

	baseThreshold float64
	margin        float64
	minThreshold  float64
	maxThreshold  float64
}

type Option func(*Detector)

// WithSensitivity sets the user sensitivity multiplier, clamped to [0.3, 3.0].
func WithSensitivity(sensitivity float64) Option {
	return func(d *Detector) {
		d.sensitivity = math.Min(math.Max(sensitivity, minSensitivity), maxSensitivity)
	}
}

// WithAdaptiveThreshold enables or disables the noise-floor driven threshold.
func WithAdaptiveThreshold(enabled bool) Option {
	return func(d *Detector) { d.adaptive = enabled }
}

// WithWindow sets the sliding decision window size and the minimum count of
// active frames inside it required to report sustained activity.
func WithWindow(size, minActiveFrames int) Option {
	return func(d *Detector) {
		if size > 0 {
			d.windowSize = size
		}
		if minActiveFrames > 0 {
			d.minActiveFrames = minActiveFrames
		}
	}
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		sensitivity:     1.0,
		adaptive:        true,
		noiseFloor:      newNoiseFloor(),
		windowSize:      defaultWindowSize,
		minActiveFrames: defaultMinActiveFrames,
		baseThreshold:   defaultBaseThreshold,
		margin:          defaultMargin,
		minThreshold:    defaultMinThreshold,
		maxThreshold:    defaultMaxThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessFrame classifies one PCM16 frame. playbackActive switches the
// decision rule: while the agent's own audio is playing the energy and
// spectral signals must both agree (suppressing echo pickup), otherwise
// either signal alone is enough so quiet speech is not missed. The sliding
// window is not updated while playback is active, so echo cannot poison the
// sustained-activity decision.
func (d *Detector) ProcessFrame(frame []byte, playbackActive bool) Decision {
	samples := decodePCM16(frame)
	rms := strideRMS(samples, sampleStride)
	spectral := spectralChange(samples)

	d.mu.Lock()
	defer d.mu.Unlock()

	threshold := d.effectiveThresholdLocked()

	var active bool
	if playbackActive {
		active = rms > threshold && spectral > spectralRatio*threshold
	} else {
		active = rms > threshold || spectral > spectralRatio*threshold
	}

	if !active {
		d.noiseFloor.observe(rms)
	}

	if !playbackActive {
		d.window = append(d.window, active)
		if len(d.window) > d.windowSize {
			d.window = d.window[len(d.window)-d.windowSize:]
		}
	}

	return Decision{Active: active, RMS: rms, Spectral: spectral, Threshold: threshold}
}

// HasSustainedActivity reports whether enough recent frames were active to
// treat the input as genuine voice activity rather than a transient.
func (d *Detector) HasSustainedActivity() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	activeCount := 0
	for _, active := range d.window {
		if active {
			activeCount++
		}
	}
	return activeCount >= d.minActiveFrames
}

// ClearWindow drops the sliding decision window. Called when a filtered or
// secondary speaker is detected so their frames do not count as activity.
func (d *Detector) ClearWindow() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = nil
}

// Reset restores the detector to its initial state. Called on capture
// start/stop.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = nil
	d.noiseFloor.reset()
}

func (d *Detector) effectiveThresholdLocked() float64 {
	if !d.adaptive {
		return d.baseThreshold * d.sensitivity
	}

	floor, ok := d.noiseFloor.current()
	if !ok {
		return d.baseThreshold * d.sensitivity
	}

	threshold := floor*d.sensitivity + d.margin
	return math.Min(math.Max(threshold, d.minThreshold), d.maxThreshold)
}

func decodePCM16(frame []byte) []float64 {
	samples := make([]float64, len(frame)/2)
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(frame[2*i:]))
		samples[i] = float64(sample) / math.MaxInt16
	}
	return samples
}

func strideRMS(samples []float64, stride int) float64 {
	if len(samples) == 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := 0; i < len(samples); i += stride {
		sum += samples[i] * samples[i]
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// spectralChange sums squared consecutive-sample differences, a cheap proxy
// for spectral flux: steady hums score low while speech transients score high
// even at similar energy.
func spectralChange(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}

	sum := 0.0
	for i := 1; i < len(samples); i++ {
		diff := samples[i] - samples[i-1]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(samples)-1))
}
