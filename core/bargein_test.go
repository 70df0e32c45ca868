package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxa-labs/voxa-core/core/echo"
	"github.com/voxa-labs/voxa-core/core/echo/llm"
	"github.com/voxa-labs/voxa-core/core/llms"
)

type playbackStatusStub struct {
	mu      sync.Mutex
	active  bool
	endedAt time.Time
}

func (s *playbackStatusStub) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *playbackStatusStub) LastPlaybackEnd() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

type validatorStub struct {
	verdict *llm.Verdict
	err     error
	calls   int
}

func (v *validatorStub) Validate(_ context.Context, _, _ string, _ []llms.Message) (*llm.Verdict, error) {
	v.calls++
	return v.verdict, v.err
}

func TestConsiderOpeningRequiresActivePlayback(t *testing.T) {
	playing := &playbackStatusStub{active: false}
	c := NewBargeInCoordinator(echo.NewDetector(), playing)

	if c.ConsiderOpening() {
		t.Fatalf("expected no validation without active playback")
	}

	playing.active = true
	if !c.ConsiderOpening() {
		t.Fatalf("expected validation to open during playback")
	}
	if !c.HasPendingValidation() {
		t.Fatalf("expected pending validation")
	}
}

func TestConsiderOpeningAllowsOnePendingValidation(t *testing.T) {
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true})

	if !c.ConsiderOpening() {
		t.Fatalf("expected first validation to open")
	}
	if c.ConsiderOpening() {
		t.Fatalf("expected second validation to be refused while one is pending")
	}
}

func TestConsiderOpeningHonoursCooldownAfterBargeIn(t *testing.T) {
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true})

	if !c.ConsiderOpening() {
		t.Fatalf("expected validation to open")
	}
	if !c.Confirm(context.Background(), "stop talking please", "the weather today", nil, nil) {
		t.Fatalf("expected interruption to confirm")
	}
	if c.ConsiderOpening() {
		t.Fatalf("expected cooldown to refuse a new validation")
	}

	c.mu.Lock()
	c.lastBargeInAt = time.Now().Add(-bargeInCooldown - time.Second)
	c.mu.Unlock()
	if !c.ConsiderOpening() {
		t.Fatalf("expected validation to open after cooldown")
	}
}

func TestPendingValidationExpires(t *testing.T) {
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true})

	if !c.ConsiderOpening() {
		t.Fatalf("expected validation to open")
	}
	c.mu.Lock()
	id := c.pending.id
	c.mu.Unlock()

	c.expire(id)
	if c.HasPendingValidation() {
		t.Fatalf("expected expired validation to be dropped")
	}
	if c.Confirm(context.Background(), "stop talking please", "the weather today", nil, nil) {
		t.Fatalf("expected confirm to refuse without a pending validation")
	}
}

func TestConfirmRejectsShortTranscriptButKeepsValidationOpen(t *testing.T) {
	var rejectedReason string
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true},
		WithRejectedCallback(func(_, reason string) { rejectedReason = reason }),
	)
	c.ConsiderOpening()

	if c.Confirm(context.Background(), "stop", "the weather today", nil, nil) {
		t.Fatalf("expected one-word transcript to be rejected")
	}
	if rejectedReason != "transcript too short" {
		t.Fatalf("expected short-transcript rejection, got %q", rejectedReason)
	}
	if !c.HasPendingValidation() {
		t.Fatalf("expected validation to stay open for a longer transcript")
	}
	if !c.Confirm(context.Background(), "stop talking please", "the weather today", nil, nil) {
		t.Fatalf("expected longer transcript to confirm")
	}
}

func TestConfirmRequiresMoreWordsJustAfterPlaybackEnds(t *testing.T) {
	playing := &playbackStatusStub{active: true, endedAt: time.Now()}
	c := NewBargeInCoordinator(echo.NewDetector(), playing)
	c.ConsiderOpening()

	if c.Confirm(context.Background(), "hold on", "the weather today", nil, nil) {
		t.Fatalf("expected two words to be insufficient right after playback")
	}
	if !c.Confirm(context.Background(), "hold on please", "the weather today", nil, nil) {
		t.Fatalf("expected three words to confirm right after playback")
	}
}

func TestConfirmClassifiesEchoAndCancels(t *testing.T) {
	var echoed *echo.Record
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true},
		WithEchoCallback(func(record echo.Record) { echoed = &record }),
	)
	c.ConsiderOpening()

	agent := "the weather today is sunny and warm"
	if c.Confirm(context.Background(), "the weather today is sunny", agent, nil, nil) {
		t.Fatalf("expected echoed transcript to be refused")
	}
	if echoed == nil {
		t.Fatalf("expected echo callback to fire")
	}
	if c.HasPendingValidation() {
		t.Fatalf("expected validation cancelled after echo classification")
	}
}

func TestConfirmGenuineInterruption(t *testing.T) {
	var confirmed string
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true},
		WithConfirmedCallback(func(transcript string) { confirmed = transcript }),
	)
	c.ConsiderOpening()

	if !c.Confirm(context.Background(), "wait I have a question", "the weather today is sunny", nil, nil) {
		t.Fatalf("expected genuine interruption to confirm")
	}
	if confirmed != "wait I have a question" {
		t.Fatalf("expected confirmed callback with transcript, got %q", confirmed)
	}
	if c.HasPendingValidation() {
		t.Fatalf("expected pending validation consumed")
	}
}

func TestConfirmConsultsValidatorForEchoVerdict(t *testing.T) {
	validator := &validatorStub{verdict: &llm.Verdict{IsEcho: true}}
	detector := echo.NewDetector()
	var echoed *echo.Record
	c := NewBargeInCoordinator(detector, &playbackStatusStub{active: true},
		WithBargeInValidator(validator),
		WithEchoCallback(func(record echo.Record) { echoed = &record }),
	)
	c.ConsiderOpening()

	if c.Confirm(context.Background(), "wait I have a question", "the weather today is sunny", nil, nil) {
		t.Fatalf("expected validator echo verdict to refuse")
	}
	if validator.calls != 1 {
		t.Fatalf("expected validator consulted once, got %d", validator.calls)
	}
	if echoed == nil {
		t.Fatalf("expected echo callback after validator verdict")
	}
	if detector.LastDetected() == nil {
		t.Fatalf("expected validator match recorded on the detector")
	}
}

func TestConfirmRejectsInvalidTurnStart(t *testing.T) {
	validator := &validatorStub{verdict: &llm.Verdict{IsEcho: false, ValidTurnStart: false}}
	var rejectedReason string
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true},
		WithBargeInValidator(validator),
		WithRejectedCallback(func(_, reason string) { rejectedReason = reason }),
	)
	c.ConsiderOpening()

	if c.Confirm(context.Background(), "uh huh yeah okay", "the weather today is sunny", nil, nil) {
		t.Fatalf("expected invalid turn start to be refused")
	}
	if rejectedReason != "not a valid turn start" {
		t.Fatalf("expected turn-start rejection, got %q", rejectedReason)
	}
	if c.HasPendingValidation() {
		t.Fatalf("expected validation cancelled after rejection")
	}
}

func TestConfirmContinuesWhenValidatorFails(t *testing.T) {
	validator := &validatorStub{err: errors.New("validator unreachable")}
	c := NewBargeInCoordinator(echo.NewDetector(), &playbackStatusStub{active: true},
		WithBargeInValidator(validator),
	)
	c.ConsiderOpening()

	if !c.Confirm(context.Background(), "wait I have a question", "the weather today is sunny", nil, nil) {
		t.Fatalf("expected confirmation to proceed when the validator fails")
	}
}
