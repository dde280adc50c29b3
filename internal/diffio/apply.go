package diffio

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Apply applies a unified diff to content and returns the rewritten text.
// With reverse=true the roles of added and removed lines are swapped, which
// recovers the pre-operation content from the post-operation content.
// Context or removed lines that do not match the supplied content fail with
// a descriptive error (stale diff).
func Apply(diffText, content string, reverse bool) (string, error) {
	if strings.TrimSpace(diffText) == "" {
		// Empty diff: the operation changed nothing.
		return content, nil
	}

	fd, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("parse diff: %w", err)
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	idx := 0 // next unconsumed line of content, 0-based

	for hi, hunk := range fd.Hunks {
		start, count := int(hunk.OrigStartLine), int(hunk.OrigLines)
		if reverse {
			start, count = int(hunk.NewStartLine), int(hunk.NewLines)
		}

		// With a zero-length source range the start line is the one the
		// hunk inserts after, so it is still consumed as leading context.
		stop := start - 1
		if count == 0 {
			stop = start
		}
		if stop > len(lines) {
			return "", fmt.Errorf("hunk %d starts at line %d beyond content (%d lines)", hi+1, start, len(lines))
		}
		for idx < stop {
			out = append(out, lines[idx])
			idx++
		}

		for _, raw := range strings.Split(string(hunk.Body), "\n") {
			if raw == "" || raw[0] == '\\' {
				// Trailing split artifact or "\ No newline" marker.
				continue
			}
			op, text := raw[0], raw[1:]
			if reverse {
				switch op {
				case '+':
					op = '-'
				case '-':
					op = '+'
				}
			}
			switch op {
			case ' ':
				if idx >= len(lines) || lines[idx] != text {
					return "", hunkMismatch(hi, idx, text, lines)
				}
				out = append(out, text)
				idx++
			case '-':
				if idx >= len(lines) || lines[idx] != text {
					return "", hunkMismatch(hi, idx, text, lines)
				}
				idx++
			case '+':
				out = append(out, text)
			default:
				return "", fmt.Errorf("hunk %d: malformed diff line %q", hi+1, raw)
			}
		}
	}

	for idx < len(lines) {
		out = append(out, lines[idx])
		idx++
	}
	return strings.Join(out, "\n"), nil
}

// Simulate runs the same algorithm as Apply but collapses every failure to
// ("", false). It performs no I/O; preview paths rely on it never failing
// loudly.
func Simulate(diffText, content string, reverse bool) (string, bool) {
	result, err := Apply(diffText, content, reverse)
	if err != nil {
		return "", false
	}
	return result, true
}

// hunkMismatch reports a stale diff: the content no longer matches the
// line the hunk expects.
func hunkMismatch(hunkIdx, lineIdx int, want string, lines []string) error {
	got := "<end of content>"
	if lineIdx < len(lines) {
		got = fmt.Sprintf("%q", lines[lineIdx])
	}
	return fmt.Errorf("hunk %d: content mismatch at line %d: expected %q, found %s", hunkIdx+1, lineIdx+1, want, got)
}
