package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxa-labs/voxa-core/core/echo"
	"github.com/voxa-labs/voxa-core/core/echo/llm"
	"github.com/voxa-labs/voxa-core/core/llms"
)

const (
	bargeInCooldown   = 2 * time.Second
	playbackEndGrace  = 1500 * time.Millisecond
	validationTimeout = 4 * time.Second

	bargeInMinWords      = 2
	bargeInGraceMinWords = 3
)

// PlaybackStatus is the playback-side view the coordinator needs.
type PlaybackStatus interface {
	IsActive() bool
	LastPlaybackEnd() time.Time
}

// BargeInValidator is the optional LLM-assisted classifier consulted for
// ambiguous interruption candidates.
type BargeInValidator interface {
	Validate(ctx context.Context, transcript, agentUtterance string, history []llms.Message) (*llm.Verdict, error)
}

type pendingValidation struct {
	id       uuid.UUID
	openedAt time.Time
	timer    *time.Timer
}

// BargeInCoordinator decides, while the agent is speaking, whether user
// speech constitutes a genuine interruption. It opens a single pending
// validation at a time, self-cancelled on a bounded timeout, and delegates
// echo classification to the echo detector.
type BargeInCoordinator struct {
	echoDetector *echo.Detector
	validator    BargeInValidator
	playback     PlaybackStatus

	mu            sync.Mutex
	pending       *pendingValidation
	lastBargeInAt time.Time

	onConfirmed func(transcript string)
	onEcho      func(record echo.Record)
	onRejected  func(transcript, reason string)
}

type BargeInOption func(*BargeInCoordinator)

// WithBargeInValidator wires the optional LLM-assisted validator.
func WithBargeInValidator(validator BargeInValidator) BargeInOption {
	return func(c *BargeInCoordinator) { c.validator = validator }
}

func WithConfirmedCallback(callback func(transcript string)) BargeInOption {
	return func(c *BargeInCoordinator) { c.onConfirmed = callback }
}

func WithEchoCallback(callback func(record echo.Record)) BargeInOption {
	return func(c *BargeInCoordinator) { c.onEcho = callback }
}

func WithRejectedCallback(callback func(transcript, reason string)) BargeInOption {
	return func(c *BargeInCoordinator) { c.onRejected = callback }
}

func NewBargeInCoordinator(echoDetector *echo.Detector, playback PlaybackStatus, opts ...BargeInOption) *BargeInCoordinator {
	c := &BargeInCoordinator{
		echoDetector: echoDetector,
		playback:     playback,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConsiderOpening opens a pending validation if playback is active, none is
// already pending, and the cooldown since the last barge-in has elapsed.
// The caller is expected to have observed sustained voice activity first.
func (c *BargeInCoordinator) ConsiderOpening() bool {
	if !c.playback.IsActive() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return false
	}
	if !c.lastBargeInAt.IsZero() && time.Since(c.lastBargeInAt) < bargeInCooldown {
		return false
	}

	validation := &pendingValidation{id: uuid.New(), openedAt: time.Now()}
	validation.timer = time.AfterFunc(validationTimeout, func() {
		c.expire(validation.id)
	})
	c.pending = validation
	logger.Info("opened barge-in validation", "id", validation.id.String())
	return true
}

// HasPendingValidation reports whether a candidate interruption is awaiting
// a transcript.
func (c *BargeInCoordinator) HasPendingValidation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *BargeInCoordinator) expire(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.id == id {
		c.pending = nil
	}
}

// Cancel drops the pending validation, if any.
func (c *BargeInCoordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropPendingLocked()
}

func (c *BargeInCoordinator) dropPendingLocked() {
	if c.pending != nil {
		c.pending.timer.Stop()
		c.pending = nil
	}
}

// Confirm judges a candidate transcript against the pending validation.
// It returns true only for a genuine interruption; in every other case
// playback must not be stopped.
func (c *BargeInCoordinator) Confirm(ctx context.Context, transcript, agentUtterance string, speaker *int, history []llms.Message) bool {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	required := bargeInMinWords
	if time.Since(c.playback.LastPlaybackEnd()) < playbackEndGrace {
		required = bargeInGraceMinWords
	}
	if len(strings.Fields(transcript)) < required {
		// Too short to confirm; the pending validation stays open for a
		// longer transcript until it times out.
		c.reject(transcript, "transcript too short")
		return false
	}

	if match := c.echoDetector.Classify(transcript, agentUtterance, speaker); match != nil {
		c.Cancel()
		c.reportEcho()
		return false
	}

	if c.validator != nil {
		validationCtx, cancel := context.WithTimeout(ctx, validationTimeout)
		verdict, err := c.validator.Validate(validationCtx, transcript, agentUtterance, history)
		cancel()
		if err != nil {
			logger.Warn("barge-in validator failed, continuing without it", "error", err.Error())
		} else if verdict.IsEcho {
			c.echoDetector.RecordValidatorMatch(transcript)
			c.Cancel()
			c.reportEcho()
			return false
		} else if !verdict.ValidTurnStart {
			c.Cancel()
			c.reject(transcript, "not a valid turn start")
			return false
		}
	}

	c.mu.Lock()
	c.dropPendingLocked()
	c.lastBargeInAt = time.Now()
	c.mu.Unlock()

	if c.onConfirmed != nil {
		c.onConfirmed(transcript)
	}
	return true
}

func (c *BargeInCoordinator) reportEcho() {
	if c.onEcho == nil {
		return
	}
	if record := c.echoDetector.LastDetected(); record != nil {
		c.onEcho(*record)
	}
}

func (c *BargeInCoordinator) reject(transcript, reason string) {
	if c.onRejected != nil {
		c.onRejected(transcript, reason)
	}
}
