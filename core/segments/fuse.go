package segments

import (
	"strings"
	"unicode"
)

// fuse joins two adjacent transcript pieces, removing the word overlap the
// provider commonly duplicates across a segment boundary (the tail of the
// previous segment re-sent as the head of the next).
//
// The overlap must span at least two spoken words, otherwise common short
// words ("le", "the", "a") would trigger false dedupes. Contractions such as
// "c'est" count as two spoken words. The previous piece is kept verbatim, so
// any punctuation it carries at the boundary survives.
func fuse(previous, next string) string {
	previous = strings.TrimSpace(previous)
	next = strings.TrimSpace(next)
	if previous == "" {
		return next
	}
	if next == "" {
		return previous
	}

	previousWords := strings.Fields(previous)
	nextWords := strings.Fields(next)

	maxOverlap := min(len(previousWords), len(nextWords))
	for overlap := maxOverlap; overlap >= 1; overlap-- {
		if !wordsMatch(previousWords[len(previousWords)-overlap:], nextWords[:overlap]) {
			continue
		}
		if spokenWordCount(nextWords[:overlap]) < 2 {
			continue
		}

		remainder := nextWords[overlap:]
		if len(remainder) == 0 {
			return previous
		}
		return previous + " " + strings.Join(remainder, " ")
	}

	return previous + " " + next
}

func wordsMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalizeWord(a[i]) != normalizeWord(b[i]) {
			return false
		}
	}
	return true
}

// normalizeWord lowercases and strips surrounding punctuation so that "c'est,"
// and "c'est" compare equal, while internal apostrophes stay significant.
func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// spokenWordCount counts letter or digit runs across the given tokens, so a
// contraction contributes every one of its parts.
func spokenWordCount(words []string) int {
	count := 0
	for _, word := range words {
		inRun := false
		for _, r := range word {
			isSpoken := unicode.IsLetter(r) || unicode.IsNumber(r)
			if isSpoken && !inRun {
				count++
			}
			inRun = isSpoken
		}
	}
	return count
}
