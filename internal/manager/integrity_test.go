package manager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestIntegrity_MissingPatchFile(t *testing.T) {
	m, session := testManager(t, nil)
	f := filepath.Join(t.TempDir(), "f.txt")
	capture(t, m, OpWrite, f, "", "v1\n")
	capture(t, m, OpEdit, f, "v1\n", "v2\n")

	// Remove the first patch document behind the index's back.
	victim := filepath.Join(m.patchDir(*session), "patch_001.diff")
	if err := os.Remove(victim); err != nil {
		t.Fatal(err)
	}

	m.ValidateIntegrity()

	if st := m.Stats(); st.PatchCount != 1 {
		t.Fatalf("patch count after quarantine = %d, want 1", st.PatchCount)
	}
	// The surviving entry is the one whose document still exists.
	hist := m.History(0)
	if len(hist) != 1 || hist[0].PatchNumber != 2 {
		t.Errorf("surviving history = %+v", hist)
	}

	// A manifest records the quarantined metadata.
	var manifestName string
	for _, name := range listDir(t, m.quarantineDir()) {
		if strings.HasPrefix(name, "patches_"+*session+"_") && strings.HasSuffix(name, ".json") {
			manifestName = name
		}
	}
	if manifestName == "" {
		t.Fatal("no quarantine manifest written")
	}
	data, err := os.ReadFile(filepath.Join(m.quarantineDir(), manifestName))
	if err != nil {
		t.Fatal(err)
	}
	var manifest quarantineManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if manifest.ManifestID == "" || manifest.SessionID != *session {
		t.Errorf("manifest identity = %+v", manifest)
	}
	if manifest.Reason != reasonMissingPatchFile {
		t.Errorf("reason = %q", manifest.Reason)
	}
	if len(manifest.Patches) != 1 || manifest.Patches[0].PatchNumber != 1 {
		t.Errorf("manifest patches = %+v", manifest.Patches)
	}
}

func TestIntegrity_OrphanedFiles(t *testing.T) {
	m, session := testManager(t, nil)
	f := filepath.Join(t.TempDir(), "f.txt")
	capture(t, m, OpWrite, f, "", "v1\n")

	// Drop a patch document the index knows nothing about.
	orphan := filepath.Join(m.patchDir(*session), "patch_099.diff")
	writeFile(t, orphan, "stray content")

	m.ValidateIntegrity()

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan should be moved out of the patch directory")
	}
	// The indexed patch and the index itself survive.
	if st := m.Stats(); st.PatchCount != 1 {
		t.Errorf("patch count = %d, want 1", st.PatchCount)
	}

	var destDir string
	for _, name := range listDir(t, m.quarantineDir()) {
		if strings.HasPrefix(name, "orphaned_"+*session+"_") {
			destDir = filepath.Join(m.quarantineDir(), name)
		}
	}
	if destDir == "" {
		t.Fatal("no orphan quarantine directory created")
	}
	if got := readFile(t, filepath.Join(destDir, "patch_099.diff")); got != "stray content" {
		t.Errorf("moved orphan content = %q", got)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "MANIFEST.json"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest quarantineManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if manifest.Reason != reasonOrphanedFiles {
		t.Errorf("reason = %q", manifest.Reason)
	}
	if len(manifest.Moved) != 1 || manifest.Moved[0] != "patch_099.diff" {
		t.Errorf("moved = %v", manifest.Moved)
	}
	if len(manifest.Failed) != 0 {
		t.Errorf("failed = %v", manifest.Failed)
	}
}

func TestIntegrity_RepeatedRunsConverge(t *testing.T) {
	m, session := testManager(t, nil)
	f := filepath.Join(t.TempDir(), "f.txt")
	capture(t, m, OpWrite, f, "", "v1\n")
	writeFile(t, filepath.Join(m.patchDir(*session), "patch_050.diff"), "stray")
	if err := os.Remove(filepath.Join(m.patchDir(*session), "patch_001.diff")); err != nil {
		t.Fatal(err)
	}

	m.ValidateIntegrity()
	after := listDir(t, m.quarantineDir())

	// A second pass over an already-consistent session quarantines nothing.
	m.ValidateIntegrity()
	again := listDir(t, m.quarantineDir())
	if len(again) != len(after) {
		t.Errorf("second run added quarantine entries: %v vs %v", again, after)
	}
	if st := m.Stats(); st.PatchCount != 0 {
		t.Errorf("patch count = %d, want 0", st.PatchCount)
	}
}

func TestIntegrity_NoSession(t *testing.T) {
	m, session := testManager(t, nil)
	*session = ""
	m.ValidateIntegrity() // must not panic
}
