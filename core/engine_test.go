package engine

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxa-labs/voxa-core/core/llms"
	"github.com/voxa-labs/voxa-core/core/speechtotext"
	"github.com/voxa-labs/voxa-core/core/texttospeech"
	"github.com/voxa-labs/voxa-core/internal/utils"
)

type sttStub struct {
	mu      sync.Mutex
	options speechtotext.TranscriptionOptions
	started bool
	stopped bool
	closed  bool
}

func (s *sttStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(&s.options)
	}
	s.started = true
	return nil
}

func (s *sttStub) SendAudio([]byte) error { return nil }

func (s *sttStub) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *sttStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sttStub) callbacks() speechtotext.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// speechGeneratorStub emits a fixed number of short audio chunks per sent
// text so playback stays audible long enough for the tests to interleave.
type speechGeneratorStub struct {
	options    texttospeech.TextToSpeechOptions
	chunkCount int
	chunkBytes int

	mu   sync.Mutex
	sent []string
}

func (g *speechGeneratorStub) SendText(text string) error {
	g.mu.Lock()
	g.sent = append(g.sent, text)
	g.mu.Unlock()

	for i := 0; i < g.chunkCount; i++ {
		g.options.SpeechAudioCallback(make([]byte, g.chunkBytes))
	}
	return nil
}

func (g *speechGeneratorStub) Mark() error { return nil }

func (g *speechGeneratorStub) EndOfText() error {
	g.mu.Lock()
	generated := strings.Join(g.sent, " ")
	g.mu.Unlock()
	g.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{GeneratedText: generated})
	return nil
}

func (g *speechGeneratorStub) Cancel() error { return nil }
func (g *speechGeneratorStub) Close() error  { return nil }

type ttsStub struct {
	chunkCount int
	chunkBytes int
}

func (s *ttsStub) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	generator := &speechGeneratorStub{chunkCount: s.chunkCount, chunkBytes: s.chunkBytes}
	for _, opt := range opts {
		opt(&generator.options)
	}
	return generator, nil
}

type outputStub struct {
	mu        sync.Mutex
	byteCount int
	cleared   int
}

func (o *outputStub) SendAudio(audio []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byteCount += len(audio)
	return nil
}

func (o *outputStub) ClearBuffer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared++
}

func (o *outputStub) bytesSent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.byteCount
}

type messageRecord struct {
	role    llms.Role
	content string
	interim bool
}

type testHarness struct {
	engine   *Engine
	stt      *sttStub
	output   *outputStub
	llm      *llmStub
	messages chan messageRecord
}

func newTestHarness(t *testing.T, llm *llmStub) *testHarness {
	t.Helper()

	h := &testHarness{
		stt:      &sttStub{},
		output:   &outputStub{},
		llm:      llm,
		messages: make(chan messageRecord, 32),
	}

	// 1600 bytes is 50ms of 16kHz PCM16; five chunks keep playback audible
	// for roughly a quarter second.
	voice, err := NewEngine(
		WithSpeechToTextClient(h.stt),
		WithTextToSpeechClient(&ttsStub{chunkCount: 5, chunkBytes: 1600}),
		WithLLMClient(llm),
		WithAudioOutputClient(h.output),
		WithMessageCallback(func(role llms.Role, content string, interim bool, _ *int) {
			h.messages <- messageRecord{role: role, content: content, interim: interim}
		}),
	)
	if err != nil {
		t.Fatalf("failed to assemble engine: %v", err)
	}
	h.engine = voice
	t.Cleanup(func() { _ = voice.Close() })

	if err := voice.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return h
}

func (h *testHarness) waitForMessage(t *testing.T, role llms.Role) messageRecord {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case record := <-h.messages:
			if record.role == role && !record.interim {
				return record
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q message", role)
		}
	}
}

// speechFrame is 20ms of a loud tone at 16kHz, energetic enough to pass the
// strict in-playback speech rule.
func speechFrame() []byte {
	const samples = 320
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		value := 0.5 * math.Sin(2*math.Pi*8*float64(i)/float64(samples))
		binary.LittleEndian.PutUint16(frame[2*i:], uint16(int16(value*math.MaxInt16)))
	}
	return frame
}

func waitUntil(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting until %s", what)
}

func TestEngineSpokenTurnEndToEnd(t *testing.T) {
	h := newTestHarness(t, echoingStub())

	if h.engine.State() != StateListening {
		t.Fatalf("expected listening after connect, got %q", h.engine.State())
	}
	callbacks := h.stt.callbacks()
	if callbacks.SegmentCallback == nil || callbacks.SpeechEndedCallback == nil {
		t.Fatalf("expected transcription callbacks registered")
	}

	callbacks.SpeechStartedCallback()
	callbacks.SegmentCallback("what is the weather like", 0, 2*time.Second, utils.Ptr(0))
	callbacks.SpeechEndedCallback()

	user := h.waitForMessage(t, llms.RoleUser)
	if user.content != "what is the weather like" {
		t.Fatalf("unexpected user transcript %q", user.content)
	}
	agent := h.waitForMessage(t, llms.RoleAgent)
	if agent.content != "re: what is the weather like" {
		t.Fatalf("unexpected response %q", agent.content)
	}

	waitUntil(t, "playback finishes", func() bool {
		return h.engine.State() == StateListening && h.output.bytesSent() > 0
	})
	history := h.engine.Snapshot().History
	if len(history) != 2 {
		t.Fatalf("expected a two-message history, got %v", history)
	}
}

func TestEngineSuppressesEchoOfItsOwnSpeech(t *testing.T) {
	response := "the weather today is sunny and warm"
	h := newTestHarness(t, &llmStub{respond: func(context.Context, llms.Request) (*llms.Response, error) {
		return &llms.Response{Content: response}, nil
	}})

	h.engine.SendText("what is the weather like")
	h.waitForMessage(t, llms.RoleAgent)
	waitUntil(t, "playback starts", func() bool { return h.engine.playback.IsActive() })

	// The microphone overhears the speakers; loud frames during playback open
	// a validation and the transcript comes back as the agent's own words.
	for i := 0; i < bargeInActivationFrames; i++ {
		h.engine.onFrame(speechFrame())
	}
	if !h.engine.coordinator.HasPendingValidation() {
		t.Fatalf("expected microphone activity to open a validation")
	}
	callbacks := h.stt.callbacks()
	callbacks.SegmentCallback("the weather today is sunny", 0, time.Second, utils.Ptr(0))
	callbacks.SpeechEndedCallback()

	waitUntil(t, "echo is classified", func() bool { return h.engine.LastEchoDetected() != nil })
	if !h.engine.playback.IsActive() {
		t.Fatalf("expected playback to continue through an echo")
	}
	if got := h.llm.callCount(); got != 1 {
		t.Fatalf("expected no turn started for an echo, got %d generations", got)
	}
}

func TestEngineBargeInStopsPlaybackAndStartsNewTurn(t *testing.T) {
	h := newTestHarness(t, echoingStub())

	h.engine.SendText("tell me a long story")
	h.waitForMessage(t, llms.RoleAgent)
	waitUntil(t, "playback starts", func() bool { return h.engine.playback.IsActive() })

	for i := 0; i < bargeInActivationFrames; i++ {
		h.engine.onFrame(speechFrame())
	}
	if !h.engine.coordinator.HasPendingValidation() {
		t.Fatalf("expected microphone activity to open a validation")
	}
	callbacks := h.stt.callbacks()
	callbacks.SegmentCallback("wait stop I have a question", 0, time.Second, utils.Ptr(0))
	callbacks.SpeechEndedCallback()

	interruption := h.waitForMessage(t, llms.RoleAgent)
	if interruption.content != "re: wait stop I have a question" {
		t.Fatalf("expected interruption answered, got %q", interruption.content)
	}
	waitUntil(t, "interruption turn completes", func() bool { return h.llm.callCount() == 2 })
}

func TestEngineUtteranceDuringPlaybackIsQueuedUntilPlaybackEnds(t *testing.T) {
	h := newTestHarness(t, echoingStub())

	h.engine.SendText("tell me about the ocean")
	h.waitForMessage(t, llms.RoleAgent)
	waitUntil(t, "playback starts", func() bool { return h.engine.playback.IsActive() })

	// No sustained microphone activity reached the coordinator, so this is
	// not a barge-in; the utterance waits its turn instead of being dropped.
	callbacks := h.stt.callbacks()
	callbacks.SegmentCallback("can you cover tides as well please", 0, time.Second, utils.Ptr(0))
	callbacks.SpeechEndedCallback()

	user := h.waitForMessage(t, llms.RoleUser)
	if user.content != "can you cover tides as well please" {
		t.Fatalf("unexpected user transcript %q", user.content)
	}

	waitUntil(t, "queued utterance is answered", func() bool { return h.llm.callCount() == 2 })
	agent := h.waitForMessage(t, llms.RoleAgent)
	if agent.content != "re: can you cover tides as well please" {
		t.Fatalf("expected the queued utterance answered after playback, got %q", agent.content)
	}
}

func TestEngineDisconnectClearsConversation(t *testing.T) {
	h := newTestHarness(t, echoingStub())

	h.engine.SendText("hello there")
	h.waitForMessage(t, llms.RoleAgent)

	h.engine.Disconnect()
	if h.engine.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %q", h.engine.State())
	}
	if history := h.engine.Snapshot().History; len(history) != 0 {
		t.Fatalf("expected history cleared, got %v", history)
	}
}
