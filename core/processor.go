package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/voxa-labs/voxa-core/core/llms"
	"go.opentelemetry.io/otel/codes"
)

const (
	utteranceDedupWindow   = 5 * time.Second
	maxRapidResponses      = 5
	rapidResponseWindow    = 10 * time.Second
	circuitBreakerCooldown = 30 * time.Second
	recentResponseLimit    = 5
	duplicateOverlapRatio  = 0.9
	queueDrainDelay        = 500 * time.Millisecond
)

// ErrCircuitBreakerOpen is surfaced when the rapid-response circuit breaker
// is cooling down and a new utterance cannot be processed yet.
var ErrCircuitBreakerOpen = errors.New("responding too quickly, please wait a moment")

// LLM is the narrow completion interface the processor depends on.
type LLM interface {
	Complete(ctx context.Context, request llms.Request) (*llms.Response, error)
}

// Processor orchestrates one complete turn: dedup, queueing while busy,
// cancellation of stale generations, duplicate-response suppression, the
// rapid-response circuit breaker, and triggering of speech synthesis.
type Processor struct {
	machine *TurnStateMachine
	llm     LLM

	systemPrompt string
	model        string

	onGenerationStart func(prompt string)
	onResponse        func(content string)
	onError           func(err error)
	speak             func(ctx context.Context, text string) error
	persist           func(role llms.Role, content string)

	mu               sync.Mutex
	cancelGeneration context.CancelFunc

	lastProcessed   string
	lastProcessedAt time.Time

	recentResponses []string
	responseTimes   []time.Time
	breakerOpenedAt *time.Time
}

type ProcessorOption func(*Processor)

func WithSystemPrompt(systemPrompt string) ProcessorOption {
	return func(p *Processor) { p.systemPrompt = systemPrompt }
}

func WithModel(model string) ProcessorOption {
	return func(p *Processor) { p.model = model }
}

// WithGenerationStartCallback is invoked when a prompt is actually handed to
// the LLM, after dedup and queueing have had their say.
func WithGenerationStartCallback(callback func(prompt string)) ProcessorOption {
	return func(p *Processor) { p.onGenerationStart = callback }
}

func WithResponseCallback(callback func(content string)) ProcessorOption {
	return func(p *Processor) { p.onResponse = callback }
}

func WithErrorCallback(callback func(err error)) ProcessorOption {
	return func(p *Processor) { p.onError = callback }
}

// WithSpeechTrigger sets the function used to synthesize and play a
// completed response.
func WithSpeechTrigger(speak func(ctx context.Context, text string) error) ProcessorOption {
	return func(p *Processor) { p.speak = speak }
}

// WithPersistenceSink sets the sink that receives finalized turns. Failures
// are the sink's problem; the processor does not retry.
func WithPersistenceSink(sink func(role llms.Role, content string)) ProcessorOption {
	return func(p *Processor) { p.persist = sink }
}

func NewProcessor(machine *TurnStateMachine, llm LLM, opts ...ProcessorOption) *Processor {
	p := &Processor{
		machine: machine,
		llm:     llm,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessUtterance runs a completed utterance through one full turn, then
// drains queued utterances with an explicit work loop.
func (p *Processor) ProcessUtterance(ctx context.Context, text string) {
	message := text
	for {
		if !p.processOne(ctx, message) {
			return
		}
		queued, ok := p.machine.PopQueued()
		if !ok {
			return
		}
		message = queued.Content
	}
}

// CancelGeneration cancels the in-flight LLM call, if any.
func (p *Processor) CancelGeneration() {
	p.mu.Lock()
	cancel := p.cancelGeneration
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// processOne handles a single utterance. It reports whether the queue may
// be drained immediately afterwards.
func (p *Processor) processOne(ctx context.Context, text string) bool {
	if p.isRecentDuplicate(text) {
		logger.Info("dropping duplicate utterance", "utterance", text)
		return false
	}

	if p.breakerIsCoolingDown() {
		p.reportError(ErrCircuitBreakerOpen)
		return false
	}

	if p.machine.State() == StateGenerating {
		if !p.machine.GenerationTimedOut() {
			if err := p.machine.Apply(TurnEvent{Type: EventUserSpeechEnd, Message: text}); err != nil {
				p.reportError(err)
			}
			return false
		}

		// The outstanding call is stale; force it out of the way.
		p.CancelGeneration()
		if err := p.machine.Apply(TurnEvent{Type: EventGenerationTimeout}); err != nil {
			p.reportError(err)
			return false
		}
	}

	if err := p.machine.Apply(TurnEvent{Type: EventUserSpeechEnd, Message: text}); err != nil {
		p.reportError(err)
		return false
	}
	if p.machine.State() != StateProcessing {
		// Accepted but queued; someone else owns the turn.
		return false
	}

	return p.generate(ctx, text)
}

func (p *Processor) generate(ctx context.Context, text string) bool {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	if err := p.machine.Apply(TurnEvent{Type: EventGenerationStart}); err != nil {
		p.reportError(err)
		return false
	}
	p.machine.AppendHistory(llms.Message{Role: llms.RoleUser, Content: text})
	if p.onGenerationStart != nil {
		p.onGenerationStart(text)
	}

	generationCtx, cancel := context.WithCancel(ctx)
	watchdog := time.AfterFunc(generationTimeout, func() {
		cancel()
		if err := p.machine.Apply(TurnEvent{Type: EventGenerationTimeout}); err == nil {
			logger.Warn("generation watchdog fired", "utterance", text)
		}
	})
	p.mu.Lock()
	p.cancelGeneration = cancel
	p.mu.Unlock()

	response, err := p.llm.Complete(generationCtx, llms.Request{
		SystemPrompt: p.systemPrompt,
		Messages:     p.machine.RecentHistory(),
		Model:        p.model,
	})

	watchdog.Stop()
	p.mu.Lock()
	p.cancelGeneration = nil
	p.mu.Unlock()
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Expected unwind from barge-in, replacement, or timeout.
			p.machine.RollbackLastHistory(llms.RoleUser)
			_ = p.machine.Apply(TurnEvent{Type: EventGenerationComplete})
			return false
		}

		recordedErr := fmt.Errorf("generation failed: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		if applyErr := p.machine.Apply(TurnEvent{Type: EventGenerationError}); applyErr != nil {
			logger.Warn("failed to record generation error", "error", applyErr.Error())
		}
		p.reportError(recordedErr)
		p.scheduleDelayedDrain(ctx)
		return false
	}

	if p.machine.PartialIsFresh() {
		// The user kept talking while we were generating; do not speak
		// over them.
		p.machine.RollbackLastHistory(llms.RoleUser)
		p.machine.markUserContinuationAbort()
		_ = p.machine.Apply(TurnEvent{Type: EventGenerationComplete})
		return false
	}

	// Stamp only once a response survived generation; a transient failure
	// should not dedup the user's identical retry.
	p.markProcessed(text)

	if p.isDuplicateResponse(response.Content) {
		logger.Info("suppressing duplicate response", "response", response.Content)
		_ = p.machine.Apply(TurnEvent{Type: EventGenerationComplete})
		return true
	}

	p.machine.AppendHistory(llms.Message{Role: llms.RoleAgent, Content: response.Content})
	p.recordResponse(response.Content)
	if err := p.machine.Apply(TurnEvent{Type: EventGenerationComplete}); err != nil {
		p.reportError(err)
		return false
	}

	if p.onResponse != nil {
		p.onResponse(response.Content)
	}
	if p.persist != nil {
		p.persist(llms.RoleAgent, response.Content)
	}
	if p.speak != nil {
		if err := p.speak(ctx, response.Content); err != nil {
			p.reportError(fmt.Errorf("speech synthesis failed: %w", err))
		}
	}

	return true
}

func (p *Processor) scheduleDelayedDrain(ctx context.Context) {
	time.AfterFunc(queueDrainDelay, func() {
		queued, ok := p.machine.PopQueued()
		if !ok {
			return
		}
		p.ProcessUtterance(ctx, queued.Content)
	})
}

func (p *Processor) isRecentDuplicate(text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return normalizeMessage(text) == p.lastProcessed &&
		p.lastProcessed != "" &&
		time.Since(p.lastProcessedAt) < utteranceDedupWindow
}

func (p *Processor) markProcessed(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastProcessed = normalizeMessage(text)
	p.lastProcessedAt = time.Now()
}

func (p *Processor) breakerIsCoolingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.breakerOpenedAt == nil {
		return false
	}
	if time.Since(*p.breakerOpenedAt) < circuitBreakerCooldown {
		return true
	}
	p.breakerOpenedAt = nil
	p.responseTimes = nil
	return false
}

// recordResponse tracks the response for duplicate suppression and trips
// the circuit breaker when too many responses land in too short a window.
func (p *Processor) recordResponse(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recentResponses = append(p.recentResponses, normalizeResponse(content))
	if len(p.recentResponses) > recentResponseLimit {
		p.recentResponses = p.recentResponses[1:]
	}

	now := time.Now()
	cutoff := now.Add(-rapidResponseWindow)
	kept := p.responseTimes[:0]
	for _, at := range p.responseTimes {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	p.responseTimes = append(kept, now)

	if len(p.responseTimes) >= maxRapidResponses {
		p.breakerOpenedAt = &now
		logger.Warn("rapid-response circuit breaker tripped",
			"responses", len(p.responseTimes), "window", rapidResponseWindow.String())
	}
}

func (p *Processor) isDuplicateResponse(content string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	normalized := normalizeResponse(content)
	for _, recent := range p.recentResponses {
		if recent == normalized {
			return true
		}
		if responseWordOverlap(recent, normalized) > duplicateOverlapRatio {
			return true
		}
	}
	return false
}

func (p *Processor) reportError(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}

func normalizeResponse(response string) string {
	return strings.Join(strings.Fields(strings.ToLower(response)), " ")
}

// responseWordOverlap computes the shared-word ratio between two normalized
// responses, relative to the longer one.
func responseWordOverlap(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	uniqueA := make(map[string]bool, len(wordsA))
	for _, word := range wordsA {
		uniqueA[word] = true
	}
	uniqueB := make(map[string]bool, len(wordsB))
	for _, word := range wordsB {
		uniqueB[word] = true
	}

	shared := 0
	for word := range uniqueB {
		if uniqueA[word] {
			shared++
		}
	}

	longest := len(uniqueA)
	if len(uniqueB) > longest {
		longest = len(uniqueB)
	}
	return float64(shared) / float64(longest)
}
