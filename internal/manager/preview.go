package manager

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benhmoore/Code-Ally-sub003/internal/diffio"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchindex"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchstore"
)

// PreviewLast predicts the effect of UndoLast(count) without mutating any
// file or the index. Returns nil when there is nothing to preview or every
// simulation fails. Previews run inside the session queue; they read the
// index and patch documents, which background retention mutates.
func (m *Manager) PreviewLast(count int) []UndoPreview {
	if count < 1 {
		return nil
	}
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return nil
	}
	var out []UndoPreview
	m.queue.Do(id, func() {
		out = previewSet(store, ix.Last(count))
	})
	return out
}

// PreviewSingle predicts the effect of UndoSingle(patchNumber).
func (m *Manager) PreviewSingle(patchNumber int) []UndoPreview {
	if patchNumber < 1 {
		return nil
	}
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return nil
	}
	var out []UndoPreview
	m.queue.Do(id, func() {
		meta := ix.Get(patchNumber)
		if meta == nil {
			return
		}
		out = previewSet(store, []patchindex.Meta{*meta})
	})
	return out
}

// PreviewSince predicts the effect of UndoSince(timestamp).
func (m *Manager) PreviewSince(timestamp string) []UndoPreview {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		log.Debug().Str("timestamp", timestamp).Msg("preview: invalid timestamp")
		return nil
	}
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return nil
	}
	var out []UndoPreview
	m.queue.Do(id, func() {
		out = previewSet(store, ix.Since(t))
	})
	return out
}

// previewSet simulates reverting each patch, newest first, mirroring the
// order undoSet would use. Patches that cannot be simulated (missing
// document, stale diff) are skipped; the preview path must never fail
// loudly. Must run inside the session queue.
func previewSet(store *patchstore.Store, metas []patchindex.Meta) []UndoPreview {
	var out []UndoPreview
	for i := len(metas) - 1; i >= 0; i-- {
		meta := metas[i]
		doc, ok := store.Read(meta.PatchFile)
		if !ok {
			log.Debug().Int("patch", meta.PatchNumber).Msg("preview: patch document unreadable")
			continue
		}
		diffText, ok := diffio.Unwrap(doc)
		if !ok {
			log.Debug().Int("patch", meta.PatchNumber).Msg("preview: patch document has no diff content")
			continue
		}

		current := ""
		if data, err := os.ReadFile(meta.FilePath); err == nil {
			current = string(data)
		}

		predicted, ok := diffio.Simulate(diffText, current, true)
		if !ok {
			log.Debug().Int("patch", meta.PatchNumber).Str("file", meta.FilePath).Msg("preview: simulation failed")
			continue
		}

		out = append(out, UndoPreview{
			OperationType:    meta.OperationType,
			FilePath:         meta.FilePath,
			PatchNumber:      meta.PatchNumber,
			Timestamp:        meta.Timestamp,
			CurrentContent:   current,
			PredictedContent: predicted,
		})
	}
	return out
}
