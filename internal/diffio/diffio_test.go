package diffio

import (
	"strings"
	"testing"
)

func TestBuildDiff_Identical(t *testing.T) {
	diff, err := BuildDiff("same\ncontent\n", "same\ncontent\n", "/tmp/f.txt")
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}
	if diff != "" {
		t.Errorf("expected empty diff for identical contents, got %q", diff)
	}
}

func TestBuildDiff_Headers(t *testing.T) {
	diff, err := BuildDiff("old\n", "new\n", "/tmp/f.txt")
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}
	if !strings.Contains(diff, "--- a//tmp/f.txt") || !strings.Contains(diff, "+++ b//tmp/f.txt") {
		t.Errorf("missing file headers:\n%s", diff)
	}
	if !strings.Contains(diff, "@@") {
		t.Errorf("missing hunk header:\n%s", diff)
	}
}

func TestWrapUnwrap_Exact(t *testing.T) {
	diff, err := BuildDiff("a\nb\n", "a\nc\n", "f.txt")
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}
	doc := Wrap("edit", "/abs/f.txt", "2026-08-26T10:00:00Z", diff)

	if !strings.Contains(doc, "Operation: edit") {
		t.Errorf("header missing operation:\n%s", doc)
	}
	if !strings.Contains(doc, "Path: /abs/f.txt") {
		t.Errorf("header missing path:\n%s", doc)
	}

	got, ok := Unwrap(doc)
	if !ok {
		t.Fatal("Unwrap: no diff marker found")
	}
	if got != diff {
		t.Errorf("unwrapped diff differs:\ngot:  %q\nwant: %q", got, diff)
	}
}

func TestUnwrap_MissingMarker(t *testing.T) {
	if _, ok := Unwrap("just some text\nwithout a marker\n"); ok {
		t.Error("expected Unwrap to fail on a document without a marker")
	}
}

func TestUnwrap_SurvivesHeaderChanges(t *testing.T) {
	// Unwrap keys off the marker line, not the header fields.
	doc := "Some-Future-Field: yes\n" + diffMarker + "\n--- a/f\n+++ b/f\n"
	got, ok := Unwrap(doc)
	if !ok {
		t.Fatal("Unwrap failed")
	}
	if got != "--- a/f\n+++ b/f\n" {
		t.Errorf("got %q", got)
	}
}

func TestStats(t *testing.T) {
	diff, err := BuildDiff("a\nb\nc\n", "a\nx\ny\nc\n", "f.txt")
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}
	s := Stats(diff)
	if s.Additions != 2 || s.Deletions != 1 {
		t.Errorf("got +%d -%d, want +2 -1\n%s", s.Additions, s.Deletions, diff)
	}
	if s.Changes != s.Additions+s.Deletions {
		t.Errorf("changes %d != additions+deletions %d", s.Changes, s.Additions+s.Deletions)
	}
}

func TestStats_MalformedInput(t *testing.T) {
	for _, input := range []string{"", "not a diff at all", "+++ only\n", "@@ rubbish"} {
		if s := Stats(input); s != (DiffStats{}) {
			t.Errorf("Stats(%q) = %+v, want zero counts", input, s)
		}
	}
}
