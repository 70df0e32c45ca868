// Package echo decides whether a transcribed utterance is the microphone
// picking up the agent's own synthesized speech rather than genuine user
// input.
package echo

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// Similarity thresholds are empirically tuned values carried over from
// production sessions; they are configuration, not derived quantities.
const (
	// ThresholdLoose applies before diarization has tracked a primary
	// speaker, when nothing distinguishes the user's voice from the agent's.
	ThresholdLoose = 0.25
	// ThresholdUnknownSpeaker applies when the speaker tag is missing or does
	// not match the tracked primary speaker.
	ThresholdUnknownSpeaker = 0.4
	// ThresholdPrimarySpeaker applies when the transcript is attributed to the
	// tracked primary speaker.
	ThresholdPrimarySpeaker = 0.5
	// ThresholdHigh marks near-certain echo regardless of speaker evidence.
	ThresholdHigh = 0.75

	phraseMinWords = 2
	phraseMaxWords = 7
)

// MatchType identifies which detection layer classified the transcript.
type MatchType string

const (
	MatchContained MatchType = "contained"
	MatchFuzzy     MatchType = "fuzzy"
	MatchPhrase    MatchType = "phrase"
	MatchValidator MatchType = "validator"
)

// Match describes a positive echo classification.
type Match struct {
	Type       MatchType
	Similarity float64
}

// Record is the last detected echo, retained for diagnostics only.
type Record struct {
	Transcript string
	MatchType  MatchType
	Similarity float64
	DetectedAt time.Time
}

type Detector struct {
	mu   sync.Mutex
	last *Record

	primarySpeaker *int
}

func NewDetector() *Detector {
	return &Detector{}
}

// SetPrimarySpeaker records the diarization tag of the participant treated as
// the genuine user.
func (d *Detector) SetPrimarySpeaker(speaker int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.primarySpeaker = &speaker
}

// LastDetected returns the most recent echo classification, if any.
func (d *Detector) LastDetected() *Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last == nil {
		return nil
	}
	record := *d.last
	return &record
}

// Classify runs the layered heuristics against the agent's current utterance.
// A nil return means the transcript is not considered echo.
func (d *Detector) Classify(transcript, agentUtterance string, speaker *int) *Match {
	transcriptWords := normalizedWords(transcript)
	agentWords := normalizedWords(agentUtterance)
	if len(transcriptWords) == 0 || len(agentWords) == 0 {
		return nil
	}

	var match *Match
	overlap := wordOverlapRatio(transcriptWords, agentWords)
	coverage := wordOverlapRatio(agentWords, transcriptWords)
	switch {
	case containsSequence(agentWords, transcriptWords):
		match = &Match{Type: MatchContained, Similarity: 1.0}
	case overlap >= d.overlapThreshold(speaker):
		match = &Match{Type: MatchFuzzy, Similarity: overlap}
	case coverage >= ThresholdHigh:
		// Nearly the whole agent utterance came back in the transcript.
		// Treat as echo no matter whose voice it was tagged as.
		match = &Match{Type: MatchFuzzy, Similarity: coverage}
	case phraseContained(agentWords, transcriptWords):
		match = &Match{Type: MatchPhrase, Similarity: overlap}
	}

	if match != nil {
		d.record(transcript, *match)
	}
	return match
}

// RecordValidatorMatch stores an echo classification produced by the external
// LLM-assisted validator so diagnostics cover that path too.
func (d *Detector) RecordValidatorMatch(transcript string) Match {
	match := Match{Type: MatchValidator, Similarity: 1.0}
	d.record(transcript, match)
	return match
}

func (d *Detector) record(transcript string, match Match) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = &Record{
		Transcript: transcript,
		MatchType:  match.Type,
		Similarity: match.Similarity,
		DetectedAt: time.Now(),
	}
}

func (d *Detector) overlapThreshold(speaker *int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.primarySpeaker == nil:
		return ThresholdLoose
	case speaker == nil || *speaker != *d.primarySpeaker:
		return ThresholdUnknownSpeaker
	default:
		return ThresholdPrimarySpeaker
	}
}

func normalizedWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if word != "" {
			words = append(words, word)
		}
	}
	return words
}

// wordOverlapRatio is the fraction of transcript words that also appear in
// the agent's utterance.
func wordOverlapRatio(transcriptWords, agentWords []string) float64 {
	agentSet := make(map[string]struct{}, len(agentWords))
	for _, word := range agentWords {
		agentSet[word] = struct{}{}
	}

	matched := 0
	for _, word := range transcriptWords {
		if _, ok := agentSet[word]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(transcriptWords))
}

func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}

	for start := 0; start+len(needle) <= len(haystack); start++ {
		found := true
		for i := range needle {
			if haystack[start+i] != needle[i] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// phraseContained slides 2-7 word phrases from the transcript over the agent
// utterance; any hit marks the transcript as echo even when the overall
// overlap ratio stayed low.
func phraseContained(agentWords, transcriptWords []string) bool {
	maxLen := min(phraseMaxWords, len(transcriptWords))
	for length := maxLen; length >= phraseMinWords; length-- {
		for start := 0; start+length <= len(transcriptWords); start++ {
			if containsSequence(agentWords, transcriptWords[start:start+length]) {
				return true
			}
		}
	}
	return false
}
