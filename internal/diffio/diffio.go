// Package diffio builds, wraps, and applies the unified-diff patch documents
// that back the undo system. A patch document is a small line-oriented header
// (operation, path, timestamp) followed by a marker line and a standard
// unified diff, so the body stays readable by any diff tool.
package diffio

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// diffMarker separates the document header from the unified-diff body.
// Unwrap depends on this line, not on the header format, so header fields
// can change without breaking old documents.
const diffMarker = "--- BEGIN DIFF ---"

// contextLines is the number of context lines in generated hunks.
const contextLines = 3

// DiffStats summarizes the line changes in a unified diff.
type DiffStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Changes   int `json:"changes"`
}

// BuildDiff produces a unified diff from original to updated content.
// For delete operations callers pass updated="". Identical contents
// produce an empty diff.
func BuildDiff(original, updated, displayPath string) (string, error) {
	if original == updated {
		return "", nil
	}

	ud := difflib.UnifiedDiff{
		A:        diffLines(original),
		B:        diffLines(updated),
		FromFile: "a/" + displayPath,
		ToFile:   "b/" + displayPath,
		Context:  contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("build diff for %s: %w", displayPath, err)
	}
	return text, nil
}

// diffLines splits content into newline-terminated lines for difflib.
// Every logical line gets a trailing "\n" so the diff body and the applier
// agree on the line model: strings.Split(content, "\n") on one side,
// line+"\n" on the other. Split and Join are exact inverses, which is what
// makes reverse application round-trip byte-for-byte.
func diffLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = l + "\n"
	}
	return lines
}

// Wrap prepends a parseable header to a diff body, producing the document
// text stored on disk.
func Wrap(operationType, absolutePath, timestamp, diffText string) string {
	var b strings.Builder
	b.WriteString("# Patch Document\n")
	b.WriteString("Operation: " + operationType + "\n")
	b.WriteString("Path: " + absolutePath + "\n")
	b.WriteString("Timestamp: " + timestamp + "\n")
	b.WriteString(diffMarker + "\n")
	b.WriteString(diffText)
	return b.String()
}

// Unwrap recovers the exact diff body embedded in a document. Returns
// ("", false) when the marker is missing, which signals a corrupted
// document to the caller.
func Unwrap(document string) (string, bool) {
	// Marker at the very start of the document (no header).
	if rest, ok := strings.CutPrefix(document, diffMarker+"\n"); ok {
		return rest, true
	}
	_, rest, ok := strings.Cut(document, "\n"+diffMarker+"\n")
	if !ok {
		return "", false
	}
	return rest, true
}

// Stats counts added and removed lines in a unified diff. It never fails:
// malformed or empty input yields zero counts.
func Stats(diffText string) DiffStats {
	fd, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return DiffStats{}
	}

	var s DiffStats
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
				s.Additions++
			case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
				s.Deletions++
			}
		}
	}
	s.Changes = s.Additions + s.Deletions
	return s
}
