package playback

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/voxa-labs/voxa-core/core/audio"
)

type outputStub struct {
	mu      sync.Mutex
	sent    [][]byte
	cleared int
}

func (o *outputStub) SendAudio(chunk []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	copied := make([]byte, len(chunk))
	copy(copied, chunk)
	o.sent = append(o.sent, copied)
	return nil
}

func (o *outputStub) ClearBuffer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared++
}

func (o *outputStub) sentChunks() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	chunks := make([][]byte, len(o.sent))
	copy(chunks, o.sent)
	return chunks
}

func (o *outputStub) clearCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cleared
}

// testEncoding keeps chunk durations tiny so tests run fast.
var testEncoding = audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}

func TestRunDrainsBufferAndReportsEnd(t *testing.T) {
	output := &outputStub{}
	ended := make(chan time.Time, 1)
	queue := NewQueue(testEncoding, output, WithPlaybackEndCallback(func(endedAt time.Time) {
		ended <- endedAt
	}))

	queue.Enqueue(make([]byte, 64))
	queue.Enqueue(make([]byte, 64))
	queue.AllAudioLoaded()

	queue.Run(context.Background())

	if got := len(output.sentChunks()); got != 2 {
		t.Fatalf("expected 2 chunks sent, got %d", got)
	}
	select {
	case endedAt := <-ended:
		if endedAt.IsZero() {
			t.Fatalf("expected a concrete playback end timestamp")
		}
	default:
		t.Fatalf("expected playback end callback")
	}
	if queue.IsActive() {
		t.Fatalf("expected queue inactive after drain")
	}
	if queue.LastPlaybackEnd().IsZero() {
		t.Fatalf("expected last playback end to be recorded")
	}
}

func TestStopClearsQueueSynchronously(t *testing.T) {
	output := &outputStub{}
	queue := NewQueue(testEncoding, output)

	queue.Enqueue(make([]byte, 4096))
	queue.Enqueue(make([]byte, 4096))

	queue.Stop()

	if queue.IsActive() {
		t.Fatalf("expected queue inactive after stop")
	}
	if queue.LastPlaybackEnd().IsZero() {
		t.Fatalf("expected stop time recorded")
	}
	if output.clearCount() != 1 {
		t.Fatalf("expected output buffer cleared once, got %d", output.clearCount())
	}

	// Audio enqueued after a stop must not accumulate.
	queue.Enqueue(make([]byte, 16))
	queue.mu.Lock()
	pending := len(queue.chunks)
	queue.mu.Unlock()
	if pending != 0 {
		t.Fatalf("expected no pending audio after stop, got %d chunks", pending)
	}
}

func TestStopSendsGainRampedTail(t *testing.T) {
	output := &outputStub{}
	queue := NewQueue(testEncoding, output, WithFadeDuration(time.Millisecond))

	loud := make([]byte, 256)
	for i := 0; i < len(loud)/2; i++ {
		binary.LittleEndian.PutUint16(loud[2*i:], uint16(int16(10000)))
	}
	queue.Enqueue(loud)

	queue.Stop()

	chunks := output.sentChunks()
	if len(chunks) != 1 {
		t.Fatalf("expected exactly the faded tail to be sent, got %d chunks", len(chunks))
	}
	faded := chunks[0]
	first := int16(binary.LittleEndian.Uint16(faded[0:]))
	last := int16(binary.LittleEndian.Uint16(faded[len(faded)-2:]))
	if first != 10000 {
		t.Fatalf("expected fade to start at full gain, got %d", first)
	}
	if last < 0 || last > 1000 {
		t.Fatalf("expected fade to end near zero, got %d", last)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	output := &outputStub{}
	ends := 0
	queue := NewQueue(testEncoding, output, WithPlaybackEndCallback(func(time.Time) { ends++ }))

	queue.Enqueue(make([]byte, 64))
	go queue.Run(context.Background())
	time.Sleep(10 * time.Millisecond)

	queue.Stop()
	queue.Stop()

	if ends > 1 {
		t.Fatalf("expected at most one playback end callback, got %d", ends)
	}
}

func TestPauseRewindsAndResumeReplays(t *testing.T) {
	output := &outputStub{}
	queue := NewQueue(testEncoding, output)

	// One chunk of ~32ms so the pause lands mid-chunk.
	queue.Enqueue(make([]byte, 1024))
	queue.AllAudioLoaded()

	done := make(chan struct{})
	go func() {
		queue.Run(context.Background())
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	queue.Pause()

	queue.mu.Lock()
	playhead := queue.playhead
	queue.mu.Unlock()
	if playhead != 0 {
		t.Fatalf("expected playhead rewound to 0 after mid-chunk pause, got %d", playhead)
	}

	queue.Resume()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected run to finish after resume")
	}

	if got := len(output.sentChunks()); got != 2 {
		t.Fatalf("expected the paused chunk to be replayed, got %d sends", got)
	}
}

func TestStreamingEnqueuesDoNotShortenPacing(t *testing.T) {
	output := &outputStub{}
	queue := NewQueue(testEncoding, output)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		queue.Run(context.Background())
		close(done)
	}()

	// Five 40ms chunks arriving every 5ms, the usual streaming-synthesis
	// shape: audio arrives much faster than it plays.
	for i := 0; i < 5; i++ {
		queue.Enqueue(make([]byte, 1280))
		time.Sleep(5 * time.Millisecond)
	}
	queue.AllAudioLoaded()

	time.Sleep(50 * time.Millisecond)
	if !queue.IsActive() {
		t.Fatalf("expected playback still active while buffered audio remains")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected run to finish")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected 200ms of audio to pace in real time, drained in %s", elapsed)
	}
	if queue.LastPlaybackEnd().Before(start.Add(150 * time.Millisecond)) {
		t.Fatalf("expected speech-ended timestamp to reflect real playback time")
	}
}

func TestContextCancellationStopsPlayback(t *testing.T) {
	output := &outputStub{}
	queue := NewQueue(testEncoding, output)
	queue.Enqueue(make([]byte, 32000))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		queue.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected run to exit after context cancellation")
	}
}
