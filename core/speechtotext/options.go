package speechtotext

import (
	"time"

	"github.com/voxa-labs/voxa-core/core/audio"
)

// SegmentCallback receives a single transcribed segment along with its
// position on the audio timeline. Speaker is nil when diarization did not
// attribute the segment to anyone.
type SegmentCallback func(transcript string, start, end time.Duration, speaker *int)

type TranscriptionOptions struct {
	InterimSegmentCallback SegmentCallback
	SegmentCallback        SegmentCallback
	TranscriptionCallback  func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

// WithSegmentCallback registers a callback for finalized segments.
func WithSegmentCallback(callback SegmentCallback) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SegmentCallback = callback
	}
}

// WithInterimSegmentCallback registers a callback for partial segments that
// may still be revised.
func WithInterimSegmentCallback(callback SegmentCallback) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimSegmentCallback = callback
	}
}

// WithTranscriptionCallback registers a callback for the accumulated
// transcript of a whole utterance, fired when speech ends.
func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
