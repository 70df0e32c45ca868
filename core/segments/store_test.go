package segments

import (
	"testing"
	"time"
)

func TestFullTranscriptElidesBoundaryOverlap(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: 2 * time.Second, Text: "je veux dire, c'est", IsFinal: true})
	store.Upsert(Segment{Start: 2 * time.Second, End: 3 * time.Second, Text: "c'est difficile", IsFinal: true})

	if got := store.FullTranscript(); got != "je veux dire, c'est difficile" {
		t.Fatalf("expected fused transcript %q, got %q", "je veux dire, c'est difficile", got)
	}
}

func TestFullTranscriptKeepsSingleShortWordOverlap(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "le chat", IsFinal: true})
	store.Upsert(Segment{Start: time.Second, End: 2 * time.Second, Text: "le chien", IsFinal: true})

	if got := store.FullTranscript(); got != "le chat le chien" {
		t.Fatalf("expected transcript without dedupe %q, got %q", "le chat le chien", got)
	}
}

func TestFullTranscriptMultiWordOverlapAppearsOnce(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: 2 * time.Second, Text: "I think we should go", IsFinal: true})
	store.Upsert(Segment{Start: 2 * time.Second, End: 4 * time.Second, Text: "should go to the store", IsFinal: true})

	if got := store.FullTranscript(); got != "I think we should go to the store" {
		t.Fatalf("expected boundary words exactly once, got %q", got)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := NewStore()
	segment := Segment{Start: 0, End: time.Second, Text: "hello there", IsFinal: true}
	store.Upsert(segment)
	first := store.FullTranscript()

	store.Upsert(segment)
	if got := store.FullTranscript(); got != first {
		t.Fatalf("expected transcript to be stable under re-upsert, got %q then %q", first, got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single stored segment, got %d", store.Len())
	}
}

func TestFinalReplacesOverlappingPartial(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "helo ther", IsFinal: false})
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "hello there", IsFinal: true})

	if got := store.FullTranscript(); got != "hello there" {
		t.Fatalf("expected final segment to win, got %q", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected partial to be removed, got %d segments", store.Len())
	}
}

func TestPartialNeverOverwritesFinal(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "hello there", IsFinal: true})
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "helo ther", IsFinal: false})

	if got := store.FullTranscript(); got != "hello there" {
		t.Fatalf("expected final segment to survive a later partial, got %q", got)
	}
}

func TestPartialAtOverlappingRangeIsDroppedWhenFinalStored(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: 2 * time.Second, Text: "good morning", IsFinal: true})
	store.Upsert(Segment{Start: time.Second, End: 3 * time.Second, Text: "morning every", IsFinal: false})

	if store.Len() != 1 {
		t.Fatalf("expected overlapping partial to be rejected, got %d segments", store.Len())
	}
}

func TestSegmentsOrderedByStartTime(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 2 * time.Second, End: 3 * time.Second, Text: "second", IsFinal: true})
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "first", IsFinal: true})

	segments := store.Segments()
	if len(segments) != 2 || segments[0].Text != "first" || segments[1].Text != "second" {
		t.Fatalf("expected segments ordered by start time, got %v", segments)
	}
}

func TestClearDropsEverything(t *testing.T) {
	store := NewStore()
	store.Upsert(Segment{Start: 0, End: time.Second, Text: "hello", IsFinal: true})
	store.Clear()

	if store.Len() != 0 {
		t.Fatalf("expected empty store after clear, got %d segments", store.Len())
	}
	if got := store.FullTranscript(); got != "" {
		t.Fatalf("expected empty transcript after clear, got %q", got)
	}
}
