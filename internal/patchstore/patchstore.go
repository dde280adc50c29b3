// Package patchstore owns the on-disk patch documents for one session: a
// flat directory of numbered .diff files plus the serialized index. All
// methods are safe to call when no session is active (nil receiver or empty
// directory): reads miss, deletes and writes are no-ops.
package patchstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rs/zerolog/log"
)

// patchFileRe matches stored patch document basenames regardless of the
// configured zero-padding width.
var patchFileRe = regexp.MustCompile(`^patch_\d+\.diff$`)

// IsPatchFile reports whether name follows the patch document naming
// convention.
func IsPatchFile(name string) bool {
	return patchFileRe.MatchString(name)
}

// Store is a session-scoped file store for patch documents.
type Store struct {
	dir   string // "" when no session is active
	width int    // zero-padding width for patch numbers
}

// New creates a store rooted at dir. An empty dir means no active session
// and turns every operation into a safe no-op.
func New(dir string, width int) *Store {
	if width <= 0 {
		width = 3
	}
	return &Store{dir: dir, width: width}
}

// Dir returns the store directory, or "" when no session is active.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Active reports whether the store points at a session directory.
func (s *Store) Active() bool {
	return s != nil && s.dir != ""
}

// Filename returns the zero-padded basename for a patch number,
// e.g. Filename(7) -> "patch_007.diff" at the default width.
func (s *Store) Filename(patchNumber int) string {
	width := 3
	if s != nil && s.width > 0 {
		width = s.width
	}
	return fmt.Sprintf("patch_%0*d.diff", width, patchNumber)
}

// EnsureDir creates the store directory if needed. Lazy, recursive,
// idempotent.
func (s *Store) EnsureDir() error {
	if !s.Active() {
		return nil
	}
	return os.MkdirAll(s.dir, 0o755)
}

// Write stores a patch document under the given number, creating the
// directory on first use. The write goes to a temp file first and is
// renamed into place so a crash never leaves a truncated document.
// Returns the basename written, or "" when no session is active.
func (s *Store) Write(patchNumber int, content string) (string, error) {
	if !s.Active() {
		return "", nil
	}
	if err := s.EnsureDir(); err != nil {
		return "", fmt.Errorf("create patch dir: %w", err)
	}
	name := s.Filename(patchNumber)
	if err := atomicWrite(filepath.Join(s.dir, name), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// Read returns the content of a stored document, or ("", false) when the
// store is inactive or the file is unreadable.
func (s *Store) Read(name string) (string, bool) {
	if !s.Active() || name == "" {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Delete removes a stored document. Returns true only when a file was
// actually removed.
func (s *Store) Delete(name string) bool {
	if !s.Active() || name == "" {
		return false
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", name).Msg("failed to delete patch file")
	}
	return err == nil
}

// Exists reports whether a stored document is present on disk.
func (s *Store) Exists(name string) bool {
	if !s.Active() || name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// SizeOf returns the byte size of a stored document, or 0 when absent.
func (s *Store) SizeOf(name string) int64 {
	if !s.Active() || name == "" {
		return 0
	}
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return 0
	}
	return info.Size()
}

// TotalSize returns the combined byte size of all patch documents.
func (s *Store) TotalSize() int64 {
	var total int64
	for _, name := range s.ListPatchFiles() {
		total += s.SizeOf(name)
	}
	return total
}

// ListPatchFiles returns the basenames of all files in the store directory
// that follow the patch naming convention, sorted lexically (which is also
// numeric order thanks to zero padding).
func (s *Store) ListPatchFiles() []string {
	if !s.Active() {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsPatchFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// atomicWrite writes data to a temp file in the target's directory and
// renames it into place.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { tmp.Close(); os.Remove(tmpName) }
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// AtomicWriteFile exposes the temp-then-rename write for callers that
// restore user files during undo.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return atomicWrite(path, data, perm)
}
