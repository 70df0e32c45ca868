package engine

import (
	"context"
	"sync"
	"time"

	"github.com/voxa-labs/voxa-core/core/audio"
	"github.com/voxa-labs/voxa-core/core/playback"
)

// playbackController owns one playback queue per synthesized response and
// presents a stable playback view across them.
type playbackController struct {
	encodingInfo audio.EncodingInfo
	output       playback.Output

	mu          sync.Mutex
	current     *playback.Queue
	lastEndedAt time.Time

	onEnded func(endedAt time.Time)
}

func newPlaybackController(encodingInfo audio.EncodingInfo, output playback.Output, onEnded func(endedAt time.Time)) *playbackController {
	return &playbackController{
		encodingInfo: encodingInfo,
		output:       output,
		onEnded:      onEnded,
	}
}

// begin stops whatever is still playing and starts a fresh queue for the
// next response.
func (pc *playbackController) begin(ctx context.Context) *playback.Queue {
	pc.stop()

	queue := playback.NewQueue(pc.encodingInfo, pc.output,
		playback.WithPlaybackEndCallback(func(endedAt time.Time) {
			pc.mu.Lock()
			pc.lastEndedAt = endedAt
			pc.mu.Unlock()
			if pc.onEnded != nil {
				pc.onEnded(endedAt)
			}
		}),
	)

	pc.mu.Lock()
	pc.current = queue
	pc.mu.Unlock()

	go queue.Run(ctx)
	return queue
}

func (pc *playbackController) stop() {
	pc.mu.Lock()
	queue := pc.current
	pc.current = nil
	pc.mu.Unlock()

	if queue != nil {
		queue.Stop()
	}
}

func (pc *playbackController) pause() {
	pc.mu.Lock()
	queue := pc.current
	pc.mu.Unlock()
	if queue != nil {
		queue.Pause()
	}
}

func (pc *playbackController) resume() {
	pc.mu.Lock()
	queue := pc.current
	pc.mu.Unlock()
	if queue != nil {
		queue.Resume()
	}
}

func (pc *playbackController) IsActive() bool {
	pc.mu.Lock()
	queue := pc.current
	pc.mu.Unlock()
	return queue != nil && queue.IsActive()
}

func (pc *playbackController) LastPlaybackEnd() time.Time {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.current != nil {
		if endedAt := pc.current.LastPlaybackEnd(); endedAt.After(pc.lastEndedAt) {
			return endedAt
		}
	}
	return pc.lastEndedAt
}
