// Package playback buffers synthesized speech and feeds it to an audio
// output with cancellable, click-free stopping.
package playback

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/voxa-labs/voxa-core/core/audio"
)

const defaultFadeDuration = 30 * time.Millisecond

// Output is the downstream audio sink, typically a playback device client.
type Output interface {
	SendAudio(audio []byte) error
	ClearBuffer()
}

// Queue buffers synthesized audio chunks and pumps them to the output at
// playback rate. It reports when speech audibly ended and supports a
// gain-ramped stop so barge-in does not produce an audible click.
type Queue struct {
	mu sync.Mutex

	encodingInfo audio.EncodingInfo
	output       Output

	chunks    [][]byte
	playhead  int
	allLoaded bool
	stopped   bool
	paused    bool

	active      bool
	lastEndedAt time.Time

	lastChunkSentAt  time.Time
	lastChunkEndedAt time.Time

	fadeDuration  time.Duration
	onPlaybackEnd func(endedAt time.Time)

	// updateSignal wakes the pump loop when new work or state arrives;
	// interruptSignal aborts an in-progress pacing sleep and is raised only
	// by Stop and Pause, so streaming enqueues cannot shorten playback.
	updateSignal    chan struct{}
	interruptSignal chan struct{}
}

type Option func(*Queue)

// WithPlaybackEndCallback registers the callback invoked with the timestamp
// at which speech audibly ended, whether by draining or by stop.
func WithPlaybackEndCallback(callback func(endedAt time.Time)) Option {
	return func(q *Queue) { q.onPlaybackEnd = callback }
}

func WithFadeDuration(duration time.Duration) Option {
	return func(q *Queue) {
		if duration > 0 {
			q.fadeDuration = duration
		}
	}
}

func NewQueue(encodingInfo audio.EncodingInfo, output Output, opts ...Option) *Queue {
	q := &Queue{
		encodingInfo:  encodingInfo,
		output:        output,
		fadeDuration:  defaultFadeDuration,
		onPlaybackEnd:   func(time.Time) {},
		updateSignal:    make(chan struct{}, 1),
		interruptSignal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a synthesized audio chunk to the pending buffer.
func (q *Queue) Enqueue(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()
	q.signalUpdate()
}

// AllAudioLoaded marks that the synthesizer finished producing audio, so the
// pump can finish once the buffer drains.
func (q *Queue) AllAudioLoaded() {
	q.mu.Lock()
	q.allLoaded = true
	q.mu.Unlock()
	q.signalUpdate()
}

// IsActive reports whether playback is currently audible.
func (q *Queue) IsActive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// LastPlaybackEnd returns when speech last audibly ended; zero if it never
// played.
func (q *Queue) LastPlaybackEnd() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastEndedAt
}

// Run pumps buffered audio to the output until the buffer drains after
// [Queue.AllAudioLoaded], [Queue.Stop] is called, or ctx is cancelled. It
// blocks and is meant to run once per synthesized utterance.
func (q *Queue) Run(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.Stop()
		case <-done:
		}
	}()

	for {
		if ok := q.waitIfPaused(); !ok {
			break
		}

		chunk, ok := q.consumeNextChunk()
		if !ok {
			if q.finished() {
				break
			}
			<-q.updateSignal
			continue
		}

		if err := q.output.SendAudio(chunk); err != nil {
			// The sink rejected audio; treat playback as over rather than
			// spinning on a dead device.
			q.Stop()
			break
		}
		q.pace(chunk)
	}

	q.finish()
}

// Stop cancels playback: the immediately pending audio is re-sent with a
// linear gain ramp to zero so the cut is not audible, the rest of the buffer
// is dropped, and the stop time is recorded for grace-period logic. Safe to
// call from any goroutine; returns once the queue is cleared.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true

	fadeBytes := q.encodingInfo.Bytes(q.fadeDuration)
	tail := q.pendingTailLocked(fadeBytes)

	q.chunks = nil
	q.playhead = 0

	wasActive := q.active
	q.active = false
	now := time.Now()
	q.lastEndedAt = now
	q.mu.Unlock()

	q.output.ClearBuffer()
	if len(tail) > 0 {
		q.output.SendAudio(applyFadeOut(tail))
	}

	q.signalInterrupt()
	q.signalUpdate()
	if wasActive {
		q.onPlaybackEnd(now)
	}
}

// Pause stops feeding the output and clears its device buffer. The playhead
// is rewound to the last chunk that had not audibly finished, so resuming
// replays what the pause clipped.
func (q *Queue) Pause() {
	q.mu.Lock()
	if q.paused || q.stopped {
		q.mu.Unlock()
		return
	}
	q.paused = true
	if q.playhead > 0 && time.Now().Before(q.lastChunkEndedAt) {
		q.playhead--
	}
	q.mu.Unlock()

	q.output.ClearBuffer()
	q.signalInterrupt()
	q.signalUpdate()
}

// Resume continues playback after [Queue.Pause].
func (q *Queue) Resume() {
	q.mu.Lock()
	if !q.paused {
		q.mu.Unlock()
		return
	}
	q.paused = false
	q.mu.Unlock()
	q.signalUpdate()
}

func (q *Queue) waitIfPaused() (ok bool) {
	for {
		q.mu.Lock()
		paused := q.paused
		stopped := q.stopped
		q.mu.Unlock()

		if stopped {
			return false
		}
		if !paused {
			return true
		}

		<-q.updateSignal
	}
}

func (q *Queue) consumeNextChunk() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || q.playhead >= len(q.chunks) {
		return nil, false
	}

	chunk := q.chunks[q.playhead]
	q.playhead++
	q.active = true
	return chunk, true
}

func (q *Queue) finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped || (q.allLoaded && q.playhead >= len(q.chunks))
}

// pace sleeps for the chunk's playback duration so the buffer drains in real
// time and the end-of-speech timestamp is honest. Only a stop or pause cuts
// the sleep short; a stale interrupt puts it back to sleep for the remainder.
func (q *Queue) pace(chunk []byte) {
	duration := q.encodingInfo.Duration(len(chunk))

	q.mu.Lock()
	q.lastChunkSentAt = time.Now()
	q.lastChunkEndedAt = q.lastChunkSentAt.Add(duration)
	q.mu.Unlock()

	deadline := time.Now().Add(duration)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
			return
		case <-q.interruptSignal:
			timer.Stop()
			q.mu.Lock()
			interrupted := q.stopped || q.paused
			q.mu.Unlock()
			if interrupted {
				return
			}
		}
	}
}

func (q *Queue) finish() {
	q.mu.Lock()
	if q.stopped || !q.active {
		q.mu.Unlock()
		return
	}
	q.active = false
	endedAt := q.lastChunkEndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	q.lastEndedAt = endedAt
	q.mu.Unlock()

	q.onPlaybackEnd(endedAt)
}

// pendingTailLocked returns up to byteCount bytes of not-yet-played audio.
func (q *Queue) pendingTailLocked(byteCount int) []byte {
	tail := []byte{}
	for _, chunk := range q.chunks[q.playhead:] {
		remaining := byteCount - len(tail)
		if remaining <= 0 {
			break
		}
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		tail = append(tail, chunk...)
	}
	return tail
}

func (q *Queue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}

func (q *Queue) signalInterrupt() {
	select {
	case q.interruptSignal <- struct{}{}:
	default:
	}
}

// applyFadeOut ramps PCM16 samples linearly to zero over the whole slice.
func applyFadeOut(pcm []byte) []byte {
	faded := make([]byte, len(pcm))
	copy(faded, pcm)

	sampleCount := len(faded) / 2
	for i := 0; i < sampleCount; i++ {
		sample := int16(binary.LittleEndian.Uint16(faded[2*i:]))
		gain := 1.0 - float64(i)/float64(sampleCount)
		binary.LittleEndian.PutUint16(faded[2*i:], uint16(int16(float64(sample)*gain)))
	}
	return faded
}
