package events

import (
	"testing"
	"time"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	speaker := 1
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user speech started", event: NewUserSpeechStarted(), expected: KindUserSpeechStarted},
		{name: "user speech ended", event: NewUserSpeechEnded(), expected: KindUserSpeechEnded},
		{name: "user interim segment", event: NewUserTranscriptInterimSegment("seg", 0, time.Second, &speaker), expected: KindUserTranscriptInterimSegment},
		{name: "user transcript segment", event: NewUserTranscriptSegment("seg", 0, time.Second, nil), expected: KindUserTranscriptSegment},
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "assistant response started", event: NewAssistantResponseStarted("prompt"), expected: KindAssistantResponseStarted},
		{name: "assistant response final", event: NewAssistantResponseFinal("text"), expected: KindAssistantResponseFinal},
		{name: "assistant response failed", event: NewAssistantResponseFailed(nil), expected: KindAssistantResponseFailed},
		{name: "assistant playback started", event: NewAssistantPlaybackStarted(), expected: KindAssistantPlaybackStarted},
		{name: "assistant playback ended", event: NewAssistantPlaybackEnded(time.Now()), expected: KindAssistantPlaybackEnded},
		{name: "turn state changed", event: NewTurnStateChanged("idle", "listening"), expected: KindTurnStateChanged},
		{name: "turn cancelled", event: NewTurnCancelled(), expected: KindTurnCancelled},
		{name: "echo detected", event: NewEchoDetected("text", "contained", 1.0), expected: KindEchoDetected},
		{name: "barge-in confirmed", event: NewBargeInConfirmed("text"), expected: KindBargeInConfirmed},
		{name: "barge-in rejected", event: NewBargeInRejected("text", "echo"), expected: KindBargeInRejected},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestUserSpeechStartedAndEndedKindsAreDistinct(t *testing.T) {
	started := NewUserSpeechStarted()
	ended := NewUserSpeechEnded()

	if started.Kind() == ended.Kind() {
		t.Fatalf("expected speech started and speech ended kinds to differ, both were %q", started.Kind())
	}
}
