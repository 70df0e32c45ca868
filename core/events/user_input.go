package events

import "time"

const (
	// KindUserSpeechStarted identifies the start of user speech activity.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserSpeechEnded identifies the end of user speech activity.
	KindUserSpeechEnded Kind = "user_input.speech_ended"
	// KindUserTranscriptInterimSegment identifies a mutable interim transcript segment.
	KindUserTranscriptInterimSegment Kind = "user_input.transcript_interim_segment"
	// KindUserTranscriptSegment identifies a finalized append-only transcript segment.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the terminal full transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserSpeechStarted marks the start of user speech activity.
type UserSpeechStarted struct{ Base }

// NewUserSpeechStarted creates a user speech started event.
func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

// UserSpeechEnded marks the end of user speech activity.
type UserSpeechEnded struct{ Base }

// NewUserSpeechEnded creates a user speech ended event.
func NewUserSpeechEnded() UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded)}
}

// UserTranscriptInterimSegment carries an interim transcript segment that may
// still be revised, positioned on the audio timeline.
type UserTranscriptInterimSegment struct {
	Base
	Segment string
	Start   time.Duration
	End     time.Duration
	Speaker *int
}

// NewUserTranscriptInterimSegment creates an interim transcript segment event.
func NewUserTranscriptInterimSegment(segment string, start, end time.Duration, speaker *int) UserTranscriptInterimSegment {
	return UserTranscriptInterimSegment{
		Base:    NewBase(KindUserTranscriptInterimSegment),
		Segment: segment,
		Start:   start,
		End:     end,
		Speaker: speaker,
	}
}

// UserTranscriptSegment carries a finalized append-only transcript segment
// positioned on the audio timeline.
type UserTranscriptSegment struct {
	Base
	Segment string
	Start   time.Duration
	End     time.Duration
	Speaker *int
}

// NewUserTranscriptSegment creates a finalized transcript segment event.
func NewUserTranscriptSegment(segment string, start, end time.Duration, speaker *int) UserTranscriptSegment {
	return UserTranscriptSegment{
		Base:    NewBase(KindUserTranscriptSegment),
		Segment: segment,
		Start:   start,
		End:     end,
		Speaker: speaker,
	}
}

// UserTranscriptFinal carries the terminal full transcript for the utterance.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a user transcript final event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}
