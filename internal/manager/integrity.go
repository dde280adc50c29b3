package manager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/benhmoore/Code-Ally-sub003/internal/patchindex"
	"github.com/benhmoore/Code-Ally-sub003/internal/patchstore"
)

// Quarantine reason codes.
const (
	reasonMissingPatchFile = "missing_patch_file"
	reasonOrphanedFiles    = "orphaned_files_not_in_index"
)

// quarantineManifest records what integrity validation removed or moved,
// kept under the sessions root for forensic recovery. Quarantined state
// never re-enters the active index.
type quarantineManifest struct {
	ManifestID string            `json:"manifest_id"`
	SessionID  string            `json:"session_id"`
	Reason     string            `json:"reason"`
	CreatedAt  string            `json:"created_at"`
	Patches    []patchindex.Meta `json:"patches,omitempty"`
	Moved      []string          `json:"moved,omitempty"`
	Failed     []string          `json:"failed,omitempty"`
}

// ValidateIntegrity reconciles the index with the files on disk: index
// entries whose documents are missing are quarantined out of the index,
// and documents not referenced by the index are moved aside. It never
// fails; every unexpected error degrades to log-and-continue so the
// session stays available.
func (m *Manager) ValidateIntegrity() {
	id, store, ix := m.ensureSession()
	if id == "" || ix == nil {
		return
	}
	m.runIntegrity(id, store, ix)
}

// runIntegrity performs the reconciliation inside the session queue.
func (m *Manager) runIntegrity(sessionID string, store *patchstore.Store, ix *patchindex.Index) {
	m.queue.Do(sessionID, func() {
		m.quarantineCorrupted(sessionID, store, ix)
		m.quarantineOrphans(sessionID, store, ix)
	})
}

// quarantineCorrupted removes index entries whose patch documents are gone
// and writes their metadata to a quarantine manifest.
func (m *Manager) quarantineCorrupted(sessionID string, store *patchstore.Store, ix *patchindex.Index) {
	var corrupted []patchindex.Meta
	for _, meta := range ix.Patches {
		if !store.Exists(meta.PatchFile) {
			corrupted = append(corrupted, meta)
		}
	}
	if len(corrupted) == 0 {
		return
	}

	log.Info().Int("count", len(corrupted)).Str("session", sessionID).Msg("integrity: quarantining entries with missing patch files")

	manifest := quarantineManifest{
		ManifestID: uuid.NewString(),
		SessionID:  sessionID,
		Reason:     reasonMissingPatchFile,
		CreatedAt:  time.Now().Format(time.RFC3339),
		Patches:    corrupted,
	}
	name := fmt.Sprintf("patches_%s_%d.json", sessionID, time.Now().Unix())
	if err := m.writeManifest(name, manifest); err != nil {
		log.Warn().Err(err).Msg("integrity: failed to write quarantine manifest")
		// Entries are still removed: the index must never keep pointing at
		// files that do not exist.
	}

	numbers := make(map[int]struct{}, len(corrupted))
	for _, meta := range corrupted {
		numbers[meta.PatchNumber] = struct{}{}
	}
	ix.RemoveMany(numbers)
	if err := ix.Save(m.indexPath(sessionID)); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("integrity: failed to save index after quarantine")
	}
}

// quarantineOrphans moves patch documents that are not in the index into a
// quarantine subdirectory, with a manifest of moved and failed names.
func (m *Manager) quarantineOrphans(sessionID string, store *patchstore.Store, ix *patchindex.Index) {
	known := make(map[string]struct{}, len(ix.Patches))
	for _, meta := range ix.Patches {
		known[meta.PatchFile] = struct{}{}
	}

	var orphans []string
	for _, name := range store.ListPatchFiles() {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	if len(orphans) == 0 {
		return
	}

	log.Info().Int("count", len(orphans)).Str("session", sessionID).Msg("integrity: quarantining orphaned patch files")

	destDir := filepath.Join(m.quarantineDir(), fmt.Sprintf("orphaned_%s_%d", sessionID, time.Now().Unix()))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("integrity: failed to create orphan quarantine dir")
		return
	}

	manifest := quarantineManifest{
		ManifestID: uuid.NewString(),
		SessionID:  sessionID,
		Reason:     reasonOrphanedFiles,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}
	for _, name := range orphans {
		src := filepath.Join(store.Dir(), name)
		if err := os.Rename(src, filepath.Join(destDir, name)); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("integrity: failed to move orphaned patch file")
			manifest.Failed = append(manifest.Failed, name)
			continue
		}
		manifest.Moved = append(manifest.Moved, name)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(destDir, "MANIFEST.json"), data, 0o644)
	}
	if err != nil {
		log.Warn().Err(err).Msg("integrity: failed to write orphan manifest")
	}
}

// quarantineDir is the sibling directory under the sessions root that
// holds quarantine manifests and moved files.
func (m *Manager) quarantineDir() string {
	return filepath.Join(m.root, ".quarantine")
}

// writeManifest persists a quarantine manifest under the quarantine dir.
func (m *Manager) writeManifest(name string, manifest quarantineManifest) error {
	if err := os.MkdirAll(m.quarantineDir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.quarantineDir(), name), data, 0o644)
}
