// Package manager orchestrates undo capture and replay: every file
// mutation the assistant performs is stored as a reversible patch document
// plus an index entry, and can later be previewed or reverted one at a
// time, in batches, or from a point in time. The manager mediates every
// call between the diff codec, the file store, and the index, and keeps
// the two mutually consistent across crashes via integrity validation.
package manager

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benhmoore/Code-Ally-sub003/internal/config"
	"github.com/benhmoore/Code-Ally-sub003/internal/diffio"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchindex"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchstore"
)

// Known operation types. The set is open: storage treats the type as an
// opaque string, these are just the ones the editing tools emit.
const (
	OpWrite    = "write"
	OpEdit     = "edit"
	OpLineEdit = "line-edit"
	OpDelete   = "delete"
)

// SessionFunc reports the active session id, or "" when no session is
// active. The manager consults it on every operation, so session changes
// take effect without explicit wiring.
type SessionFunc func() string

// UndoResult reports the outcome of an undo operation. Success is true
// only when at least one file was reverted and nothing failed.
type UndoResult struct {
	Success          bool     `json:"success"`
	RevertedFiles    []string `json:"reverted_files"`
	FailedOperations []string `json:"failed_operations"`
}

// UndoPreview is the predicted effect of reverting one patch, computed
// without touching any file or the index.
type UndoPreview struct {
	OperationType    string `json:"operation_type"`
	FilePath         string `json:"file_path"`
	PatchNumber      int    `json:"patch_number"`
	Timestamp        string `json:"timestamp"`
	CurrentContent   string `json:"current_content"`
	PredictedContent string `json:"predicted_content"`
}

// Stats summarizes a session's patch storage.
type Stats struct {
	SessionID       string         `json:"session_id"`
	PatchCount      int            `json:"patch_count"`
	TotalBytes      int64          `json:"total_bytes"`
	NextPatchNumber int            `json:"next_patch_number"`
	Operations      map[string]int `json:"operations"`
}

// Manager captures and reverts file-mutating operations for the active
// session. Every access to a session's index and patch files, reads
// included, runs through the per-session queue; retention enforcement runs
// on the same queue from a background goroutine, so unqueued reads would
// race with it. mu guards only which session is active: code inside the
// queue works on store/index snapshots taken under mu, never on the fields
// directly. A Manager assumes it is the only owner of its sessions
// directory.
type Manager struct {
	root    string
	width   int
	policy  patchindex.Policy
	session SessionFunc

	queue *keyedQueue
	bg    sync.WaitGroup

	mu        sync.Mutex // guards the three active-session fields below
	sessionID string
	store     *patchstore.Store
	index     *patchindex.Index
}

// New creates a Manager rooted at the configured sessions directory.
func New(cfg *config.Config, session SessionFunc) *Manager {
	return &Manager{
		root:  cfg.SessionsDirOrDefault(),
		width: cfg.Patches.NumberWidthOrDefault(),
		policy: patchindex.Policy{
			MaxPatches:    cfg.Retention.MaxPatchesOrDefault(),
			MaxTotalBytes: cfg.Retention.MaxTotalBytesOrDefault(),
		},
		session: session,
		queue:   newKeyedQueue(),
	}
}

// patchDir returns the patch directory for a session.
func (m *Manager) patchDir(sessionID string) string {
	return filepath.Join(m.root, sessionID, "patches")
}

// indexPath returns the index file path for a session.
func (m *Manager) indexPath(sessionID string) string {
	return filepath.Join(m.patchDir(sessionID), patchindex.IndexFilename)
}

// OnSessionChange re-points the store and index at the current session's
// directory, reloads the index, and re-runs integrity validation. With no
// active session the manager drops into its no-op state.
func (m *Manager) OnSessionChange() {
	id := ""
	if m.session != nil {
		id = m.session()
	}

	m.mu.Lock()
	m.sessionID = id
	if id == "" {
		m.store = nil
		m.index = nil
		m.mu.Unlock()
		return
	}
	m.store = patchstore.New(m.patchDir(id), m.width)
	m.index = patchindex.Load(m.indexPath(id))
	store, ix := m.store, m.index
	m.mu.Unlock()

	m.runIntegrity(id, store, ix)
}

// ensureSession refreshes the active-session state when the provider's id
// changed, then returns a snapshot. An empty id means no session.
func (m *Manager) ensureSession() (string, *patchstore.Store, *patchindex.Index) {
	id := ""
	if m.session != nil {
		id = m.session()
	}

	m.mu.Lock()
	stale := id != m.sessionID || (id != "" && m.index == nil)
	m.mu.Unlock()
	if stale {
		m.OnSessionChange()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.store, m.index
}

// Capture records one file-mutating operation as a reversible patch and
// returns its number. In the no-session state it is a no-op returning nil.
// Failures are logged and swallowed: the triggering file operation has
// already happened, so capture must never block it.
func (m *Manager) Capture(operationType, filePath, originalContent, newContent string) *int {
	id, store, ix := m.ensureSession()
	if id == "" {
		return nil
	}
	if operationType == OpDelete {
		newContent = ""
	}

	var captured *int
	m.queue.Do(id, func() {
		abs, err := filepath.Abs(filePath)
		if err != nil {
			log.Warn().Err(err).Str("file", filePath).Msg("capture: cannot resolve path")
			return
		}

		timestamp := time.Now().Format(time.RFC3339)
		diffText, err := diffio.BuildDiff(originalContent, newContent, abs)
		if err != nil {
			log.Warn().Err(err).Str("file", abs).Msg("capture: diff generation failed")
			return
		}
		doc := diffio.Wrap(operationType, abs, timestamp, diffText)

		num := ix.NextNumber()
		name, err := store.Write(num, doc)
		if err != nil {
			log.Warn().Err(err).Int("patch", num).Msg("capture: failed to write patch document")
			return
		}

		ix.Add(patchindex.Meta{
			PatchNumber:   num,
			Timestamp:     timestamp,
			OperationType: operationType,
			FilePath:      abs,
			PatchFile:     name,
		})
		ix.IncrementNumber()
		if err := ix.Save(m.indexPath(id)); err != nil {
			// Keep index and disk consistent: drop the entry and its file.
			// The counter stays incremented; numbers are never reused.
			ix.Remove(num)
			store.Delete(name)
			log.Warn().Err(err).Int("patch", num).Msg("capture: failed to save patch index")
			return
		}
		captured = &num
	})

	if captured != nil {
		m.scheduleRetention(id)
	}
	return captured
}

// Stats returns read-only storage statistics for the active session. Runs
// inside the session queue: background retention compacts the index in
// place, so even reads must not overlap it.
func (m *Manager) Stats() Stats {
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return Stats{Operations: map[string]int{}}
	}
	var st Stats
	m.queue.Do(id, func() {
		st = Stats{
			SessionID:       id,
			PatchCount:      ix.Count(),
			TotalBytes:      store.TotalSize(),
			NextPatchNumber: ix.NextNumber(),
			Operations:      ix.OperationCounts(),
		}
	})
	return st
}

// History returns patch metadata most-recent-first. A non-positive limit
// returns everything.
func (m *Manager) History(limit int) []patchindex.Meta {
	id, _, ix := m.ensureSession()
	if id == "" || ix == nil {
		return nil
	}
	var out []patchindex.Meta
	m.queue.Do(id, func() {
		out = ix.History(limit)
	})
	return out
}

// ClearAll deletes every patch document for the active session and resets
// the index to empty. This is the only point where numbering restarts.
func (m *Manager) ClearAll() {
	id, store, _ := m.ensureSession()
	if id == "" {
		return
	}
	m.queue.Do(id, func() {
		for _, name := range store.ListPatchFiles() {
			store.Delete(name)
		}
		fresh := patchindex.NewIndex()
		m.mu.Lock()
		if m.sessionID == id {
			m.index = fresh
		}
		m.mu.Unlock()
		if err := store.EnsureDir(); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("clear: failed to create patch directory")
			return
		}
		if err := fresh.Save(m.indexPath(id)); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("clear: failed to save reset index")
		}
	})
}

// CleanupSession removes the given session's patch directory recursively.
// Best effort: failures are logged, never returned.
func (m *Manager) CleanupSession(sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	m.queue.Do(sessionID, func() {
		dir := m.patchDir(sessionID)
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("cleanup: failed to remove patch directory")
		}
		m.mu.Lock()
		if m.sessionID == sessionID {
			m.index = nil // force a reload on the next operation
		}
		m.mu.Unlock()
	})
}

// Flush blocks until scheduled background work (retention enforcement) has
// completed. Tests rely on this for determinism.
func (m *Manager) Flush() {
	m.bg.Wait()
}
