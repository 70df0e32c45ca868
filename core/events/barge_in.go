package events

const (
	// KindEchoDetected identifies a transcript classified as the agent's own voice.
	KindEchoDetected Kind = "barge_in.echo_detected"
	// KindBargeInConfirmed identifies a confirmed user interruption.
	KindBargeInConfirmed Kind = "barge_in.confirmed"
	// KindBargeInRejected identifies a candidate interruption that was dismissed.
	KindBargeInRejected Kind = "barge_in.rejected"
)

// EchoDetected marks a transcript that matched the agent's own speech.
type EchoDetected struct {
	Base
	Transcript string
	MatchType  string
	Similarity float64
}

// NewEchoDetected creates an echo detected event.
func NewEchoDetected(transcript, matchType string, similarity float64) EchoDetected {
	return EchoDetected{
		Base:       NewBase(KindEchoDetected),
		Transcript: transcript,
		MatchType:  matchType,
		Similarity: similarity,
	}
}

// BargeInConfirmed marks a user interruption that stopped playback.
type BargeInConfirmed struct {
	Base
	Transcript string
}

// NewBargeInConfirmed creates a barge-in confirmed event.
func NewBargeInConfirmed(transcript string) BargeInConfirmed {
	return BargeInConfirmed{Base: NewBase(KindBargeInConfirmed), Transcript: transcript}
}

// BargeInRejected marks a candidate interruption that was dismissed.
type BargeInRejected struct {
	Base
	Transcript string
	Reason     string
}

// NewBargeInRejected creates a barge-in rejected event.
func NewBargeInRejected(transcript, reason string) BargeInRejected {
	return BargeInRejected{Base: NewBase(KindBargeInRejected), Transcript: transcript, Reason: reason}
}
