package engine

import (
	"context"

	"github.com/voxa-labs/voxa-core/core/audio"
	"github.com/voxa-labs/voxa-core/core/events"
	"github.com/voxa-labs/voxa-core/core/llms"
	"github.com/voxa-labs/voxa-core/core/playback"
	"github.com/voxa-labs/voxa-core/core/speechtotext"
	"github.com/voxa-labs/voxa-core/core/texttospeech"
	"github.com/voxa-labs/voxa-core/core/vad"
)

// SpeechToText is the duplex streaming ASR surface the engine consumes.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
	Close() error
}

// TextToSpeech produces a speech generator per synthesized response.
type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}

// AudioInput owns the microphone device.
type AudioInput interface {
	StartCapture(ctx context.Context, onFrame func(frame []byte)) error
	StopCapture() error
	Mute()
	Unmute()
	IsMuted() bool
	EncodingInfo() audio.EncodingInfo
}

type engineOptions struct {
	systemPrompt string
	model        string

	vadOptions []vad.Option

	validator BargeInValidator

	onMessage     func(role llms.Role, content string, interim bool, speaker *int)
	onAudio       func(audio []byte)
	onError       func(err error)
	onPlaybackEnd func()
	onEvent       func(event events.Event)
	persist       func(role llms.Role, content string)
}

type EngineOption func(*Engine)

func WithSpeechToTextClient(client SpeechToText) EngineOption {
	return func(e *Engine) { e.stt = client }
}

func WithTextToSpeechClient(client TextToSpeech) EngineOption {
	return func(e *Engine) { e.tts = client }
}

func WithLLMClient(client LLM) EngineOption {
	return func(e *Engine) { e.llm = client }
}

func WithAudioInputClient(client AudioInput) EngineOption {
	return func(e *Engine) { e.input = client }
}

func WithAudioOutputClient(client playback.Output) EngineOption {
	return func(e *Engine) { e.output = client }
}

func WithEngineSystemPrompt(systemPrompt string) EngineOption {
	return func(e *Engine) { e.options.systemPrompt = systemPrompt }
}

func WithEngineModel(model string) EngineOption {
	return func(e *Engine) { e.options.model = model }
}

// WithVADOptions forwards tuning options to the voice activity detector.
func WithVADOptions(opts ...vad.Option) EngineOption {
	return func(e *Engine) { e.options.vadOptions = opts }
}

// WithValidator wires the optional LLM-assisted barge-in validator.
func WithValidator(validator BargeInValidator) EngineOption {
	return func(e *Engine) { e.options.validator = validator }
}

// WithMessageCallback registers the UI sink for user and agent messages.
// Interim user transcripts are flagged so the UI can render them as mutable.
func WithMessageCallback(callback func(role llms.Role, content string, interim bool, speaker *int)) EngineOption {
	return func(e *Engine) { e.options.onMessage = callback }
}

// WithAudioCallback registers the UI sink for synthesized audio bytes.
func WithAudioCallback(callback func(audio []byte)) EngineOption {
	return func(e *Engine) { e.options.onAudio = callback }
}

func WithEngineErrorCallback(callback func(err error)) EngineOption {
	return func(e *Engine) { e.options.onError = callback }
}

func WithPlaybackEndCallback(callback func()) EngineOption {
	return func(e *Engine) { e.options.onPlaybackEnd = callback }
}

// WithEventCallback registers a sink for the typed orchestration events.
func WithEventCallback(callback func(event events.Event)) EngineOption {
	return func(e *Engine) { e.options.onEvent = callback }
}

// WithPersistence registers the external sink that receives finalized turns.
// The engine does not retry persistence failures.
func WithPersistence(sink func(role llms.Role, content string)) EngineOption {
	return func(e *Engine) { e.options.persist = sink }
}
