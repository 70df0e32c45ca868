package deepgram

import (
	"context"
	"testing"
	"time"

	"github.com/voxa-labs/voxa-core/core/speechtotext"
)

func TestProcessMessageReportsFinalSegmentWithTimingAndSpeaker(t *testing.T) {
	client := NewTranscriptionClient()

	var gotTranscript string
	var gotStart, gotEnd time.Duration
	var gotSpeaker *int
	options := speechtotext.TranscriptionOptions{
		SegmentCallback: func(transcript string, start, end time.Duration, speaker *int) {
			gotTranscript = transcript
			gotStart, gotEnd = start, end
			gotSpeaker = speaker
		},
	}

	msg := []byte(`{
		"type": "Results",
		"is_final": true,
		"speech_final": false,
		"start": 1.5,
		"duration": 2.0,
		"channel": {"alternatives": [{
			"transcript": " hello there ",
			"words": [
				{"word": "hello", "speaker": 1},
				{"word": "there", "speaker": 1}
			]
		}]}
	}`)
	client.processMessage(context.Background(), msg, options)

	if gotTranscript != "hello there" {
		t.Fatalf("expected trimmed transcript %q, got %q", "hello there", gotTranscript)
	}
	if gotStart != 1500*time.Millisecond {
		t.Fatalf("expected start 1.5s, got %v", gotStart)
	}
	if gotEnd != 3500*time.Millisecond {
		t.Fatalf("expected end 3.5s, got %v", gotEnd)
	}
	if gotSpeaker == nil || *gotSpeaker != 1 {
		t.Fatalf("expected speaker 1, got %v", gotSpeaker)
	}
}

func TestProcessMessageReportsInterimSegments(t *testing.T) {
	client := NewTranscriptionClient()

	interimCalls := 0
	finalCalls := 0
	options := speechtotext.TranscriptionOptions{
		InterimSegmentCallback: func(string, time.Duration, time.Duration, *int) { interimCalls++ },
		SegmentCallback:        func(string, time.Duration, time.Duration, *int) { finalCalls++ },
	}

	msg := []byte(`{
		"type": "Results",
		"is_final": false,
		"start": 0.0,
		"duration": 0.5,
		"channel": {"alternatives": [{"transcript": "hel"}]}
	}`)
	client.processMessage(context.Background(), msg, options)

	if interimCalls != 1 {
		t.Fatalf("expected one interim callback, got %d", interimCalls)
	}
	if finalCalls != 0 {
		t.Fatalf("expected no final callbacks for interim message, got %d", finalCalls)
	}
}

func TestProcessMessageAccumulatesTranscriptUntilSpeechFinal(t *testing.T) {
	client := NewTranscriptionClient()

	var fullTranscript string
	speechEnded := false
	options := speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { fullTranscript = transcript },
		SpeechEndedCallback:   func() { speechEnded = true },
	}

	first := []byte(`{
		"type": "Results",
		"is_final": true,
		"speech_final": false,
		"channel": {"alternatives": [{"transcript": "hello"}]}
	}`)
	second := []byte(`{
		"type": "Results",
		"is_final": true,
		"speech_final": true,
		"channel": {"alternatives": [{"transcript": "world"}]}
	}`)
	client.processMessage(context.Background(), first, options)
	if fullTranscript != "" {
		t.Fatalf("expected no transcription before speech end, got %q", fullTranscript)
	}

	client.processMessage(context.Background(), second, options)
	if fullTranscript != "hello world" {
		t.Fatalf("expected accumulated transcript %q, got %q", "hello world", fullTranscript)
	}
	if !speechEnded {
		t.Fatalf("expected speech-ended callback")
	}
}

func TestProcessMessageUtteranceEndClosesOpenUtterance(t *testing.T) {
	client := NewTranscriptionClient()

	endCalls := 0
	options := speechtotext.TranscriptionOptions{
		SpeechEndedCallback: func() { endCalls++ },
	}

	utteranceEnd := []byte(`{"type": "UtteranceEnd"}`)
	client.processMessage(context.Background(), utteranceEnd, options)
	if endCalls != 0 {
		t.Fatalf("expected no speech-end callback without an open utterance, got %d", endCalls)
	}

	client.processMessage(context.Background(), []byte(`{"type": "SpeechStarted"}`), options)
	client.processMessage(context.Background(), utteranceEnd, options)
	if endCalls != 1 {
		t.Fatalf("expected one speech-end callback, got %d", endCalls)
	}
}

func TestDominantSpeakerPicksMajorityLabel(t *testing.T) {
	msg := []byte(`{
		"channel": {"alternatives": [{
			"words": [
				{"word": "a", "speaker": 0},
				{"word": "b", "speaker": 1},
				{"word": "c", "speaker": 1}
			]
		}]}
	}`)
	speaker := dominantSpeaker(msg)
	if speaker == nil || *speaker != 1 {
		t.Fatalf("expected speaker 1, got %v", speaker)
	}

	if got := dominantSpeaker([]byte(`{"channel": {"alternatives": [{"words": []}]}}`)); got != nil {
		t.Fatalf("expected nil speaker without labels, got %v", got)
	}
}
