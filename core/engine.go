// Package engine drives a spoken conversation between a human participant
// and an LLM-backed agent: continuous capture, voice-activity detection,
// barge-in handling, echo rejection, transcript fusion, turn orchestration,
// and synthesized-speech playback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxa-labs/voxa-core/core/audio"
	"github.com/voxa-labs/voxa-core/core/echo"
	"github.com/voxa-labs/voxa-core/core/events"
	"github.com/voxa-labs/voxa-core/core/llms"
	"github.com/voxa-labs/voxa-core/core/playback"
	"github.com/voxa-labs/voxa-core/core/segments"
	"github.com/voxa-labs/voxa-core/core/speechtotext"
	"github.com/voxa-labs/voxa-core/core/texttospeech"
	"github.com/voxa-labs/voxa-core/core/vad"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine owns one conversation session end to end. Construct it with
// [NewEngine], start it with [Engine.Connect], and tear it down with
// [Engine.Close]; a single engine instance serves a single session.
type Engine struct {
	machine      *TurnStateMachine
	processor    *Processor
	coordinator  *BargeInCoordinator
	vadDetector  *vad.Detector
	store        *segments.Store
	echoDetector *echo.Detector
	playback     *playbackController

	stt    SpeechToText
	tts    TextToSpeech
	llm    LLM
	input  AudioInput
	output playback.Output

	options engineOptions

	baseContext context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once

	mu                   sync.Mutex
	currentUtterance     string
	lastSpeaker          *int
	primarySpeaker       *int
	playbackSpeechFrames int
}

// bargeInActivationFrames is how many consecutive strict-mode speech frames
// during playback count as sustained activity for barge-in purposes. The
// listening window is frozen while the agent speaks, so it cannot serve here.
const bargeInActivationFrames = 3

func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		baseContext: context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.llm == nil {
		return nil, fmt.Errorf("an LLM client is required")
	}
	if e.stt == nil {
		return nil, fmt.Errorf("a speech-to-text client is required")
	}
	if e.output == nil {
		return nil, fmt.Errorf("an audio output client is required")
	}

	e.store = segments.NewStore()
	e.echoDetector = echo.NewDetector()
	e.vadDetector = vad.NewDetector(e.options.vadOptions...)

	e.machine = NewTurnStateMachine()
	e.machine.SetTransitionCallback(func(from, to State) {
		e.emit(events.NewTurnStateChanged(string(from), string(to)))
	})

	encodingInfo := audio.GetDefaultEncodingInfo()
	if e.input != nil {
		encodingInfo = e.input.EncodingInfo()
	}
	e.playback = newPlaybackController(encodingInfo, e.output, e.onPlaybackEnded)

	bargeInOpts := []BargeInOption{
		WithConfirmedCallback(e.onBargeInConfirmed),
		WithEchoCallback(e.onEchoDetected),
		WithRejectedCallback(func(transcript, reason string) {
			e.emit(events.NewBargeInRejected(transcript, reason))
		}),
	}
	if e.options.validator != nil {
		bargeInOpts = append(bargeInOpts, WithBargeInValidator(e.options.validator))
	}
	e.coordinator = NewBargeInCoordinator(e.echoDetector, e.playback, bargeInOpts...)

	e.processor = NewProcessor(e.machine, e.llm,
		WithSystemPrompt(e.options.systemPrompt),
		WithModel(e.options.model),
		WithGenerationStartCallback(func(prompt string) {
			e.emit(events.NewAssistantResponseStarted(prompt))
		}),
		WithResponseCallback(e.onAgentResponse),
		WithErrorCallback(func(err error) {
			e.emit(events.NewAssistantResponseFailed(err))
			e.reportError(err)
		}),
		WithSpeechTrigger(e.speakResponse),
		WithPersistenceSink(e.options.persist),
	)

	return e, nil
}

// Connect opens the session: the state machine starts listening, the ASR
// stream opens, and microphone capture begins.
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.machine.Apply(TurnEvent{Type: EventConnect}); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	e.baseContext = sessionCtx
	e.cancel = cancel

	encodingInfo := audio.GetDefaultEncodingInfo()
	if e.input != nil {
		encodingInfo = e.input.EncodingInfo()
	}

	if err := e.stt.Transcribe(sessionCtx,
		speechtotext.WithEncodingInfo(encodingInfo),
		speechtotext.WithSpeechStartedCallback(e.onSpeechStarted),
		speechtotext.WithSpeechEndedCallback(e.onSpeechEnded),
		speechtotext.WithInterimSegmentCallback(e.onInterimSegment),
		speechtotext.WithSegmentCallback(e.onFinalSegment),
		speechtotext.WithTranscriptionCallback(func(string) {}),
	); err != nil {
		cancel()
		return fmt.Errorf("failed to start transcription: %w", err)
	}

	if e.input != nil {
		go func() {
			capture := panicSafeNamedWorker("audio capture", func(ctx context.Context) error {
				return e.input.StartCapture(ctx, e.onFrame)
			})
			if err := capture(sessionCtx); err != nil {
				e.reportError(err)
			}
		}()
	}

	withContextCancelHook(sessionCtx, func() { e.Disconnect() })
	return nil
}

// Disconnect ends the session. History, the message queue, and in-flight
// bookkeeping are cleared before this returns.
func (e *Engine) Disconnect() {
	if err := e.machine.Apply(TurnEvent{Type: EventDisconnect}); err != nil {
		return
	}

	e.processor.CancelGeneration()
	e.coordinator.Cancel()
	e.playback.stop()
	e.vadDetector.Reset()
	e.store.Clear()

	if e.input != nil {
		if err := e.input.StopCapture(); err != nil {
			e.recordError(fmt.Errorf("failed to stop audio capture: %w", err))
		}
	}
	if err := e.stt.StopStream(); err != nil {
		e.recordError(fmt.Errorf("failed to stop transcription stream: %w", err))
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// Close disconnects and releases the ASR client.
func (e *Engine) Close() error {
	var closeErr error
	e.closeOnce.Do(func() {
		e.Disconnect()
		closeErr = errors.Join(closeErr, e.stt.Close())
	})
	return closeErr
}

// SendText injects a typed user message, bypassing capture and ASR.
func (e *Engine) SendText(text string) {
	e.notifyMessage(llms.RoleUser, text, false, nil)
	go e.processor.ProcessUtterance(e.baseContext, text)
}

// Snapshot returns a defensive copy of the conversation context.
func (e *Engine) Snapshot() AgentContext {
	return e.machine.Snapshot()
}

// State returns the current turn state.
func (e *Engine) State() State {
	return e.machine.State()
}

// LastEchoDetected returns the most recent echo classification, if any.
func (e *Engine) LastEchoDetected() *echo.Record {
	return e.echoDetector.LastDetected()
}

// MuteMicrophone drops captured frames without stopping the device.
func (e *Engine) MuteMicrophone() {
	if e.input != nil {
		e.input.Mute()
	}
}

func (e *Engine) UnmuteMicrophone() {
	if e.input != nil {
		e.input.Unmute()
	}
}

// PausePlayback halts assistant audio, rewinding so nothing is clipped.
func (e *Engine) PausePlayback() { e.playback.pause() }

// ResumePlayback continues assistant audio after a pause.
func (e *Engine) ResumePlayback() { e.playback.resume() }

// onFrame handles one captured microphone frame. It must never block on the
// LLM or TTS path.
func (e *Engine) onFrame(frame []byte) {
	playbackActive := e.playback.IsActive()
	decision := e.vadDetector.ProcessFrame(frame, playbackActive)

	if e.trackPlaybackSpeech(playbackActive, decision.Active) {
		e.coordinator.ConsiderOpening()
	}

	if err := e.stt.SendAudio(frame); err != nil {
		logger.Warn("failed to forward audio frame", "error", err.Error())
	}
}

// trackPlaybackSpeech counts consecutive speech frames heard while the agent
// is speaking and reports when they amount to sustained activity. The frames
// already passed the strict energy-and-spectral rule, so echo pickup does not
// accumulate credit here.
func (e *Engine) trackPlaybackSpeech(playbackActive, frameActive bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !playbackActive || !frameActive {
		e.playbackSpeechFrames = 0
		return false
	}
	e.playbackSpeechFrames++
	return e.playbackSpeechFrames >= bargeInActivationFrames
}

func (e *Engine) onSpeechStarted() {
	_ = e.machine.Apply(TurnEvent{Type: EventUserSpeechStart})
	e.emit(events.NewUserSpeechStarted())
}

func (e *Engine) onInterimSegment(transcript string, start, end time.Duration, speaker *int) {
	e.store.Upsert(segments.Segment{
		Start:      start,
		End:        end,
		Text:       transcript,
		IsFinal:    false,
		Speaker:    speaker,
		ReceivedAt: time.Now(),
	})
	e.trackSpeaker(speaker)

	_ = e.machine.Apply(TurnEvent{Type: EventPartialTranscript})
	e.emit(events.NewUserTranscriptInterimSegment(transcript, start, end, speaker))
	e.notifyMessage(llms.RoleUser, e.store.FullTranscript(), true, speaker)
}

func (e *Engine) onFinalSegment(transcript string, start, end time.Duration, speaker *int) {
	e.store.Upsert(segments.Segment{
		Start:      start,
		End:        end,
		Text:       transcript,
		IsFinal:    true,
		Speaker:    speaker,
		ReceivedAt: time.Now(),
	})
	e.trackSpeaker(speaker)

	_ = e.machine.Apply(TurnEvent{Type: EventPartialTranscript})
	e.emit(events.NewUserTranscriptSegment(transcript, start, end, speaker))
}

// onSpeechEnded closes the utterance: the fused transcript either confirms a
// barge-in candidate or becomes a regular turn.
func (e *Engine) onSpeechEnded() {
	e.emit(events.NewUserSpeechEnded())

	transcript := e.store.FullTranscript()
	e.store.Clear()
	if transcript == "" {
		return
	}

	e.mu.Lock()
	agentUtterance := e.currentUtterance
	speaker := e.lastSpeaker
	e.mu.Unlock()

	if e.coordinator.HasPendingValidation() {
		if !e.coordinator.Confirm(e.baseContext, transcript, agentUtterance, speaker, e.machine.RecentHistory()) {
			return
		}
	} else if e.playback.IsActive() {
		// No validation opened in time; the utterance is still treated as
		// user input unless it is the agent's own speech coming back in.
		if match := e.echoDetector.Classify(transcript, agentUtterance, speaker); match != nil {
			if record := e.echoDetector.LastDetected(); record != nil {
				e.onEchoDetected(*record)
			}
			return
		}
	}

	e.emit(events.NewUserTranscriptFinal(transcript))
	e.notifyMessage(llms.RoleUser, transcript, false, speaker)
	if e.options.persist != nil {
		e.options.persist(llms.RoleUser, transcript)
	}

	go e.processor.ProcessUtterance(e.baseContext, transcript)
}

// trackSpeaker pins the first attributed speaker as the primary one; frames
// attributed to anyone else clear the VAD window so a secondary voice cannot
// accumulate sustained-activity credit.
func (e *Engine) trackSpeaker(speaker *int) {
	if speaker == nil {
		return
	}

	e.mu.Lock()
	e.lastSpeaker = speaker
	if e.primarySpeaker == nil {
		e.primarySpeaker = speaker
		e.mu.Unlock()
		e.echoDetector.SetPrimarySpeaker(*speaker)
		return
	}
	secondary := *speaker != *e.primarySpeaker
	e.mu.Unlock()

	if secondary {
		e.vadDetector.ClearWindow()
	}
}

func (e *Engine) onBargeInConfirmed(transcript string) {
	e.playback.stop()
	e.processor.CancelGeneration()
	if err := e.machine.Apply(TurnEvent{Type: EventBargeIn}); err != nil {
		logger.Warn("barge-in transition refused", "error", err.Error())
	}
	e.emit(events.NewBargeInConfirmed(transcript))
	e.emit(events.NewTurnCancelled())
}

func (e *Engine) onEchoDetected(record echo.Record) {
	e.emit(events.NewEchoDetected(record.Transcript, string(record.MatchType), record.Similarity))
}

func (e *Engine) onAgentResponse(content string) {
	e.notifyMessage(llms.RoleAgent, content, false, nil)
	e.emit(events.NewAssistantResponseFinal(content))
}

// speakResponse synthesizes a completed response and streams it into a fresh
// playback queue.
func (e *Engine) speakResponse(ctx context.Context, text string) error {
	if e.tts == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "synthesize and play response")
	defer span.End()

	e.mu.Lock()
	e.currentUtterance = text
	e.mu.Unlock()

	queue := e.playback.begin(e.baseContext)
	if err := e.machine.Apply(TurnEvent{Type: EventTtsStart}); err != nil {
		logger.Warn("tts start transition refused", "error", err.Error())
	}
	e.emit(events.NewAssistantPlaybackStarted())

	generator, err := e.tts.NewSpeechGenerator(ctx,
		texttospeech.WithEncodingInfo(e.playback.encodingInfo),
		texttospeech.WithSpeechAudioCallback(func(chunk []byte) {
			queue.Enqueue(chunk)
			if e.options.onAudio != nil {
				e.options.onAudio(chunk)
			}
		}),
		texttospeech.WithSpeechEndedCallback(func(texttospeech.SpeechEndedReport) {
			queue.AllAudioLoaded()
		}),
		texttospeech.WithErrorCallback(func(err error) {
			queue.AllAudioLoaded()
			e.reportError(fmt.Errorf("speech synthesis interrupted: %w", err))
		}),
	)
	if err != nil {
		queue.Stop()
		recordedErr := fmt.Errorf("failed to open speech generator: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return recordedErr
	}

	if err := generator.SendText(text); err != nil {
		queue.Stop()
		return fmt.Errorf("failed to send text to speech generator: %w", err)
	}
	if err := generator.EndOfText(); err != nil {
		return fmt.Errorf("failed to finish speech generator input: %w", err)
	}

	return nil
}

func (e *Engine) onPlaybackEnded(endedAt time.Time) {
	e.mu.Lock()
	e.currentUtterance = ""
	e.mu.Unlock()

	_ = e.machine.Apply(TurnEvent{Type: EventTtsEnd})
	e.emit(events.NewAssistantPlaybackEnded(endedAt))
	if e.options.onPlaybackEnd != nil {
		e.options.onPlaybackEnd()
	}

	// Utterances accepted while the agent was speaking queued up; give the
	// oldest its turn now that the floor is free.
	if queued, ok := e.machine.PopQueued(); ok {
		go e.processor.ProcessUtterance(e.baseContext, queued.Content)
	}
}

func (e *Engine) notifyMessage(role llms.Role, content string, interim bool, speaker *int) {
	if e.options.onMessage != nil && content != "" {
		e.options.onMessage(role, content, interim, speaker)
	}
}

func (e *Engine) emit(event events.Event) {
	if e.options.onEvent != nil {
		e.options.onEvent(event)
	}
}

func (e *Engine) reportError(err error) {
	e.recordError(err)
	if e.options.onError != nil {
		e.options.onError(err)
	}
}

func (e *Engine) recordError(err error) {
	span := trace.SpanFromContext(e.baseContext)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
