// Package patchindex maintains the ordered, numbered catalog of captured
// patches for one session. The index is the single source of truth for
// which patches exist; it is serialized as patch_index.json next to the
// patch documents.
package patchindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// IndexFilename is the basename of the serialized index inside a session's
// patch directory.
const IndexFilename = "patch_index.json"

// Meta is one row of the catalog: the metadata for a single captured
// operation. OperationType is an open set (write/edit/line-edit/delete);
// the index treats it as an opaque string.
type Meta struct {
	PatchNumber   int    `json:"patch_number"`
	Timestamp     string `json:"timestamp"` // RFC 3339
	OperationType string `json:"operation_type"`
	FilePath      string `json:"file_path"`
	PatchFile     string `json:"patch_file"`
}

// Time parses the entry timestamp. Invalid timestamps return a zero time
// and false; callers decide whether to skip or reject.
func (m Meta) Time() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Index is the ordered patch catalog. Patches holds insertion order,
// oldest first. NextPatchNumber only ever increases, even across
// removals, so numbers are never reused within a session.
type Index struct {
	NextPatchNumber int    `json:"next_patch_number"`
	Patches         []Meta `json:"patches"`
}

// NewIndex returns a fresh empty index.
func NewIndex() *Index {
	return &Index{NextPatchNumber: 1}
}

// Load reads an index from path. A missing file yields a fresh empty
// index; structurally invalid content is logged and replaced with a fresh
// index rather than crashing the host process.
func Load(path string) *Index {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read patch index, starting fresh")
		}
		return NewIndex()
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("corrupt patch index, resetting")
		return NewIndex()
	}
	if err := Validate(&ix); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("invalid patch index, resetting")
		return NewIndex()
	}
	return &ix
}

// Save validates and writes the index to path using a temp-then-rename
// write, so a crash mid-save leaves the previous index intact.
func (ix *Index) Save(path string) error {
	if err := Validate(ix); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return err
	}
	return writeRename(path, data)
}

// writeRename writes to a sibling temp file and renames it over path.
// The temp file lives in the same directory so the rename stays atomic.
func writeRename(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".patch_index-*.json")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// Add appends metadata to the catalog.
func (ix *Index) Add(m Meta) {
	ix.Patches = append(ix.Patches, m)
}

// Remove deletes the entry with the given patch number. Returns true if an
// entry was removed.
func (ix *Index) Remove(patchNumber int) bool {
	for i, m := range ix.Patches {
		if m.PatchNumber == patchNumber {
			ix.Patches = append(ix.Patches[:i], ix.Patches[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveMany deletes every entry whose number appears in the set and
// returns how many were removed.
func (ix *Index) RemoveMany(numbers map[int]struct{}) int {
	if len(numbers) == 0 {
		return 0
	}
	kept := ix.Patches[:0]
	removed := 0
	for _, m := range ix.Patches {
		if _, ok := numbers[m.PatchNumber]; ok {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	ix.Patches = kept
	return removed
}

// RemoveLast removes up to n of the newest entries and returns them in
// chronological order.
func (ix *Index) RemoveLast(n int) []Meta {
	if n <= 0 || len(ix.Patches) == 0 {
		return nil
	}
	if n > len(ix.Patches) {
		n = len(ix.Patches)
	}
	cut := len(ix.Patches) - n
	removed := append([]Meta(nil), ix.Patches[cut:]...)
	ix.Patches = ix.Patches[:cut]
	return removed
}

// RemoveFirst removes up to n of the oldest entries and returns them in
// chronological order.
func (ix *Index) RemoveFirst(n int) []Meta {
	if n <= 0 || len(ix.Patches) == 0 {
		return nil
	}
	if n > len(ix.Patches) {
		n = len(ix.Patches)
	}
	removed := append([]Meta(nil), ix.Patches[:n]...)
	ix.Patches = append(ix.Patches[:0], ix.Patches[n:]...)
	return removed
}

// Get returns the entry with the given patch number, or nil.
func (ix *Index) Get(patchNumber int) *Meta {
	for i := range ix.Patches {
		if ix.Patches[i].PatchNumber == patchNumber {
			m := ix.Patches[i]
			return &m
		}
	}
	return nil
}

// Last returns up to n of the newest entries in chronological order.
func (ix *Index) Last(n int) []Meta {
	if n <= 0 || len(ix.Patches) == 0 {
		return nil
	}
	if n > len(ix.Patches) {
		n = len(ix.Patches)
	}
	return append([]Meta(nil), ix.Patches[len(ix.Patches)-n:]...)
}

// Since returns entries with timestamp >= t in chronological order.
// Entries with unparseable timestamps are skipped with a warning, not
// treated as fatal.
func (ix *Index) Since(t time.Time) []Meta {
	var out []Meta
	for _, m := range ix.Patches {
		mt, ok := m.Time()
		if !ok {
			log.Warn().Int("patch", m.PatchNumber).Str("timestamp", m.Timestamp).Msg("skipping entry with invalid timestamp")
			continue
		}
		if !mt.Before(t) {
			out = append(out, m)
		}
	}
	return out
}

// NextNumber returns the number the next capture will use.
func (ix *Index) NextNumber() int {
	return ix.NextPatchNumber
}

// IncrementNumber advances the monotonic counter.
func (ix *Index) IncrementNumber() {
	ix.NextPatchNumber++
}

// Count returns the number of live entries.
func (ix *Index) Count() int {
	return len(ix.Patches)
}

// OperationCounts returns how many live entries exist per operation type.
func (ix *Index) OperationCounts() map[string]int {
	counts := make(map[string]int, 4)
	for _, m := range ix.Patches {
		counts[m.OperationType]++
	}
	return counts
}

// History returns entries most-recent-first. A non-positive limit returns
// everything.
func (ix *Index) History(limit int) []Meta {
	n := len(ix.Patches)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Meta, 0, n)
	for i := len(ix.Patches) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, ix.Patches[i])
	}
	return out
}
