package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benhmoore/Code-Ally-sub003/internal/diffio"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchindex"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchstore"
)

// UndoLast reverts up to count of the most recent patches, newest first.
// Fewer patches than requested is not an error. Counts below 1 are
// rejected before any I/O.
func (m *Manager) UndoLast(count int) UndoResult {
	if count < 1 {
		return UndoResult{FailedOperations: []string{fmt.Sprintf("undo count must be at least 1, got %d", count)}}
	}
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return UndoResult{}
	}

	var res UndoResult
	m.queue.Do(id, func() {
		metas := ix.Last(count)
		if len(metas) < count {
			log.Info().Int("requested", count).Int("available", len(metas)).Msg("undo: fewer patches available than requested")
		}
		res = m.undoSet(id, store, ix, metas)
	})
	return res
}

// UndoSingle reverts exactly one patch by number. An unknown number is
// "nothing to do", not a failure.
func (m *Manager) UndoSingle(patchNumber int) UndoResult {
	if patchNumber < 1 {
		return UndoResult{FailedOperations: []string{fmt.Sprintf("patch number must be at least 1, got %d", patchNumber)}}
	}
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return UndoResult{}
	}

	var res UndoResult
	m.queue.Do(id, func() {
		meta := ix.Get(patchNumber)
		if meta == nil {
			log.Debug().Int("patch", patchNumber).Msg("undo: no such patch")
			return
		}
		res = m.undoSet(id, store, ix, []patchindex.Meta{*meta})
	})
	return res
}

// UndoSince reverts every patch with a timestamp at or after the given
// RFC 3339 instant. The entry set is resolved by identity first, so the
// result is correct even when patches are not perfectly ordered by
// timestamp. An unparseable timestamp is rejected before any I/O.
func (m *Manager) UndoSince(timestamp string) UndoResult {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return UndoResult{FailedOperations: []string{fmt.Sprintf("invalid timestamp %q: %v", timestamp, err)}}
	}
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return UndoResult{}
	}

	var res UndoResult
	m.queue.Do(id, func() {
		res = m.undoSet(id, store, ix, ix.Since(t))
	})
	return res
}

// undoSet reverts a batch of patches most-recent-first with all-or-nothing
// index semantics: entries are removed and documents deleted only when
// every revert succeeds. On the first failure the batch stops; files
// already reverted stay reverted, every index entry is retained, and the
// result reports both. Must run inside the session queue.
func (m *Manager) undoSet(sessionID string, store *patchstore.Store, ix *patchindex.Index, metas []patchindex.Meta) UndoResult {
	var res UndoResult
	if len(metas) == 0 {
		return res
	}

	for i := len(metas) - 1; i >= 0; i-- {
		meta := metas[i]
		if err := reverseApply(store, meta); err != nil {
			log.Warn().Err(err).Int("patch", meta.PatchNumber).Str("file", meta.FilePath).Msg("undo: revert failed")
			res.FailedOperations = append(res.FailedOperations,
				fmt.Sprintf("patch %d (%s): %v", meta.PatchNumber, meta.FilePath, err))
			break
		}
		res.RevertedFiles = append(res.RevertedFiles, meta.FilePath)
	}

	if len(res.FailedOperations) > 0 || len(res.RevertedFiles) == 0 {
		return res
	}

	numbers := make(map[int]struct{}, len(metas))
	for _, meta := range metas {
		numbers[meta.PatchNumber] = struct{}{}
	}
	ix.RemoveMany(numbers)
	if err := ix.Save(m.indexPath(sessionID)); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("undo: failed to save index after revert")
	}
	for _, meta := range metas {
		store.Delete(meta.PatchFile)
	}
	res.Success = true
	return res
}

// reverseApply is the shared revert primitive behind every undo path: read
// the stored document, unwrap the diff, reverse-apply it to the file's
// current content, then write the result atomically. An empty result on an
// existing file means the patch recorded a creation, so the file is
// removed instead. Any failure returns an error without partial writes.
func reverseApply(store *patchstore.Store, meta patchindex.Meta) error {
	doc, ok := store.Read(meta.PatchFile)
	if !ok {
		return fmt.Errorf("patch document %s is missing", meta.PatchFile)
	}
	diffText, ok := diffio.Unwrap(doc)
	if !ok {
		return fmt.Errorf("patch document %s has no diff content", meta.PatchFile)
	}

	current := ""
	existed := false
	if data, err := os.ReadFile(meta.FilePath); err == nil {
		current = string(data)
		existed = true
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", meta.FilePath, err)
	}

	restored, err := diffio.Apply(diffText, current, true)
	if err != nil {
		return fmt.Errorf("reverse apply to %s: %w", meta.FilePath, err)
	}

	if restored == "" {
		// Reversal of a creation: the file should not exist.
		if existed {
			if err := os.Remove(meta.FilePath); err != nil {
				return fmt.Errorf("remove %s: %w", meta.FilePath, err)
			}
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(meta.FilePath), 0o755); err != nil {
		return fmt.Errorf("restore dir for %s: %w", meta.FilePath, err)
	}
	if err := patchstore.AtomicWriteFile(meta.FilePath, []byte(restored), 0o644); err != nil {
		return fmt.Errorf("restore %s: %w", meta.FilePath, err)
	}
	return nil
}
