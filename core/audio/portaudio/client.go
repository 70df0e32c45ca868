//go:build cgo

// Package portaudio provides capture and playback device clients backed by
// PortAudio, as an alternative to the miniaudio backend.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/voxa-labs/voxa-core/core/audio"
)

type Client struct {
	bufferSize   int
	stream       *portaudio.Stream
	pendingAudio []byte
	pendingMu    sync.Mutex

	muted   atomic.Bool
	stopped atomic.Bool

	in  []int16
	out []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// StartCapture reads microphone frames until ctx is cancelled, delivering
// each as little-endian PCM16 bytes. It blocks, so run it on its own
// goroutine.
func (c *Client) StartCapture(ctx context.Context, onFrame func(frame []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}
	c.stopped.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if c.stopped.Load() {
				return nil
			}
			if err := c.stream.Read(); err != nil {
				return fmt.Errorf("failed to read from PortAudio stream: %w", err)
			}
			if c.muted.Load() {
				continue
			}

			frame := bytes.Buffer{}
			binary.Write(&frame, binary.LittleEndian, c.in)
			onFrame(frame.Bytes())
		}
	}
}

func (c *Client) StopCapture() error {
	c.stopped.Store(true)
	return nil
}

func (c *Client) Mute()         { c.muted.Store(true) }
func (c *Client) Unmute()       { c.muted.Store(false) }
func (c *Client) IsMuted() bool { return c.muted.Load() }

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

// SendAudio writes audio to the output stream in full device buffers,
// carrying any remainder over to the next call.
func (c *Client) SendAudio(chunk []byte) error {
	bufferSize := c.bufferSize * 2

	c.pendingMu.Lock()
	pending := append(c.pendingAudio, chunk...)
	writable := len(pending) / bufferSize * bufferSize
	c.pendingAudio = append([]byte(nil), pending[writable:]...)
	c.pendingMu.Unlock()

	for i := 0; i+bufferSize <= writable; i += bufferSize {
		binary.Read(bytes.NewBuffer(pending[i:i+bufferSize]), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
	}

	return nil
}

func (c *Client) ClearBuffer() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pendingAudio = nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
