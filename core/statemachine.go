package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/voxa-labs/voxa-core/core/llms"
)

type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateProcessing   State = "processing"
	StateGenerating   State = "generating"
	StateSpeaking     State = "speaking"
	StateDisconnected State = "disconnected"
)

type EventType string

const (
	EventConnect            EventType = "connect"
	EventDisconnect         EventType = "disconnect"
	EventUserSpeechStart    EventType = "user_speech_start"
	EventUserSpeechEnd      EventType = "user_speech_end"
	EventGenerationStart    EventType = "generation_start"
	EventGenerationComplete EventType = "generation_complete"
	EventGenerationError    EventType = "generation_error"
	EventGenerationTimeout  EventType = "generation_timeout"
	EventTtsStart           EventType = "tts_start"
	EventTtsEnd             EventType = "tts_end"
	EventBargeIn            EventType = "barge_in"
	EventAbort              EventType = "abort"
	EventPartialTranscript  EventType = "partial_transcript"
)

// TurnEvent is a single input to the turn state machine. Message carries the
// utterance for EventUserSpeechEnd; DueToUserContinuation qualifies
// EventAbort.
type TurnEvent struct {
	Type                  EventType
	Message               string
	DueToUserContinuation bool
}

const (
	generationTimeout      = 60 * time.Second
	partialFreshnessWindow = 3 * time.Second
	historyContextWindow   = 20
)

// AgentContext is an immutable snapshot of the state machine's bookkeeping,
// produced by [TurnStateMachine.Snapshot].
type AgentContext struct {
	State                        State
	History                      []llms.Message
	Queue                        []QueuedMessage
	LastSentUserMessage          string
	GenerationStartedAt          *time.Time
	PartialDuringGeneration      bool
	PartialReceivedAt            *time.Time
	AbortedDueToUserContinuation bool
}

// TurnStateMachine is the authoritative model of turn ownership. Every
// transition goes through Apply; an event that is not tabulated for the
// current state is refused with an error and leaves the state unchanged.
type TurnStateMachine struct {
	mu sync.Mutex

	state State

	history             []llms.Message
	queue               *messageQueue
	lastSentUserMessage string

	generationStartedAt     *time.Time
	partialDuringGeneration bool
	partialReceivedAt       *time.Time

	abortedDueToUserContinuation bool

	onTransition func(from, to State)
}

func NewTurnStateMachine() *TurnStateMachine {
	return &TurnStateMachine{
		state: StateIdle,
		queue: newMessageQueue(defaultQueueCapacity),
	}
}

// SetTransitionCallback registers a callback fired after every accepted
// transition that changed the state.
func (m *TurnStateMachine) SetTransitionCallback(callback func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = callback
}

func (m *TurnStateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply runs one event through the transition table. The returned error is
// authoritative: a non-nil error means the event was refused and no state or
// bookkeeping changed.
func (m *TurnStateMachine) Apply(event TurnEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	to, err := m.transition(event)
	if err != nil {
		logger.Warn("turn transition refused",
			"state", string(from), "event", string(event.Type), "error", err.Error())
		return err
	}

	if to != from {
		m.state = to
		if m.onTransition != nil {
			m.onTransition(from, to)
		}
	}
	return nil
}

func (m *TurnStateMachine) transition(event TurnEvent) (State, error) {
	switch event.Type {
	case EventConnect:
		switch m.state {
		case StateIdle, StateDisconnected:
			return StateListening, nil
		}
		return m.state, fmt.Errorf("connect rejected in state %q", m.state)

	case EventDisconnect:
		m.history = nil
		m.queue.Clear()
		m.lastSentUserMessage = ""
		m.clearGenerationBookkeeping()
		return StateDisconnected, nil

	case EventUserSpeechStart:
		switch m.state {
		case StateListening, StateGenerating, StateSpeaking:
			return m.state, nil
		}
		return m.state, fmt.Errorf("user speech start rejected in state %q", m.state)

	case EventUserSpeechEnd:
		switch m.state {
		case StateListening:
			m.lastSentUserMessage = event.Message
			return StateProcessing, nil
		case StateGenerating, StateSpeaking:
			// Turn ownership is not surrendered mid-generation; the
			// utterance waits its turn instead.
			m.queue.Push(event.Message, m.lastSentUserMessage)
			return m.state, nil
		}
		return m.state, fmt.Errorf("user speech end rejected in state %q", m.state)

	case EventGenerationStart:
		switch m.state {
		case StateProcessing, StateListening:
			now := time.Now()
			m.generationStartedAt = &now
			m.partialDuringGeneration = false
			m.partialReceivedAt = nil
			m.abortedDueToUserContinuation = false
			return StateGenerating, nil
		}
		return m.state, fmt.Errorf("generation start rejected in state %q", m.state)

	case EventGenerationComplete, EventGenerationError, EventGenerationTimeout:
		if m.state != StateGenerating {
			return m.state, fmt.Errorf("%s rejected in state %q", event.Type, m.state)
		}
		m.generationStartedAt = nil
		if event.Type == EventGenerationError {
			m.lastSentUserMessage = ""
		}
		return StateListening, nil

	case EventTtsStart:
		switch m.state {
		case StateGenerating, StateListening:
			return StateSpeaking, nil
		}
		return m.state, fmt.Errorf("tts start rejected in state %q", m.state)

	case EventTtsEnd:
		if m.state == StateSpeaking {
			return StateListening, nil
		}
		return m.state, nil

	case EventBargeIn:
		switch m.state {
		case StateGenerating, StateSpeaking:
			m.clearGenerationBookkeeping()
			m.queue.Clear()
			return StateListening, nil
		case StateListening:
			return m.state, nil
		}
		return m.state, fmt.Errorf("barge-in rejected in state %q", m.state)

	case EventAbort:
		if m.state != StateProcessing {
			return m.state, fmt.Errorf("abort rejected in state %q", m.state)
		}
		m.queue.Clear()
		m.abortedDueToUserContinuation = event.DueToUserContinuation
		if !event.DueToUserContinuation {
			m.lastSentUserMessage = ""
		}
		return StateListening, nil

	case EventPartialTranscript:
		if m.state == StateGenerating {
			now := time.Now()
			m.partialDuringGeneration = true
			m.partialReceivedAt = &now
		}
		return m.state, nil
	}

	return m.state, fmt.Errorf("unknown event %q", event.Type)
}

func (m *TurnStateMachine) clearGenerationBookkeeping() {
	m.generationStartedAt = nil
	m.partialDuringGeneration = false
	m.partialReceivedAt = nil
}

// markUserContinuationAbort records that the current response was discarded
// because the user kept talking during generation.
func (m *TurnStateMachine) markUserContinuationAbort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortedDueToUserContinuation = true
}

// GenerationTimedOut reports whether an in-flight generation has exceeded
// the watchdog ceiling.
func (m *TurnStateMachine) GenerationTimedOut() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateGenerating &&
		m.generationStartedAt != nil &&
		time.Since(*m.generationStartedAt) > generationTimeout
}

// PartialIsFresh reports whether a partial transcript arrived during the
// current generation recently enough that the response should be discarded
// rather than spoken over the still-talking user.
func (m *TurnStateMachine) PartialIsFresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partialDuringGeneration &&
		m.partialReceivedAt != nil &&
		time.Since(*m.partialReceivedAt) < partialFreshnessWindow
}

// AppendHistory appends one message to the conversation history.
func (m *TurnStateMachine) AppendHistory(message llms.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, message)
}

// RollbackLastHistory removes the most recent history entry if it matches
// the given role, undoing an append after an abort or error.
func (m *TurnStateMachine) RollbackLastHistory(role llms.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 || m.history[len(m.history)-1].Role != role {
		return false
	}
	m.history = m.history[:len(m.history)-1]
	return true
}

// RecentHistory returns a copy of the most recent history entries, bounded
// to the context window handed to the LLM.
func (m *TurnStateMachine) RecentHistory() []llms.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if len(m.history) > historyContextWindow {
		start = len(m.history) - historyContextWindow
	}
	recent := make([]llms.Message, len(m.history)-start)
	copy(recent, m.history[start:])
	return recent
}

// PopQueued removes and returns the oldest queued utterance.
func (m *TurnStateMachine) PopQueued() (QueuedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Pop()
}

// LastSentUserMessage returns the utterance currently being processed.
func (m *TurnStateMachine) LastSentUserMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSentUserMessage
}

// Snapshot returns a defensive copy of the full agent context.
func (m *TurnStateMachine) Snapshot() AgentContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := AgentContext{
		State:                        m.state,
		Queue:                        m.queue.Snapshot(),
		LastSentUserMessage:          m.lastSentUserMessage,
		PartialDuringGeneration:      m.partialDuringGeneration,
		AbortedDueToUserContinuation: m.abortedDueToUserContinuation,
	}
	if err := copier.CopyWithOption(&snapshot.History, m.history, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("failed to copy history for snapshot", "error", err.Error())
	}
	if m.generationStartedAt != nil {
		startedAt := *m.generationStartedAt
		snapshot.GenerationStartedAt = &startedAt
	}
	if m.partialReceivedAt != nil {
		receivedAt := *m.partialReceivedAt
		snapshot.PartialReceivedAt = &receivedAt
	}
	return snapshot
}
