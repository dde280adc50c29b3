package patchindex

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func meta(num int, ts string) Meta {
	return Meta{
		PatchNumber:   num,
		Timestamp:     ts,
		OperationType: "edit",
		FilePath:      "/tmp/f.txt",
		PatchFile:     fmt.Sprintf("patch_%03d.diff", num),
	}
}

// populated returns an index with n entries numbered 1..n, one minute
// apart starting at base.
func populated(n int) *Index {
	ix := NewIndex()
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		ix.Add(meta(i, base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339)))
		ix.IncrementNumber()
	}
	return ix
}

func TestLoad_MissingFile(t *testing.T) {
	ix := Load(filepath.Join(t.TempDir(), "patch_index.json"))
	if ix.NextPatchNumber != 1 || ix.Count() != 0 {
		t.Errorf("fresh index expected, got next=%d count=%d", ix.NextPatchNumber, ix.Count())
	}
}

func TestLoad_CorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFilename)
	os.WriteFile(path, []byte("{not json"), 0o644)
	ix := Load(path)
	if ix.NextPatchNumber != 1 || ix.Count() != 0 {
		t.Error("corrupt index should reset to fresh")
	}
}

func TestLoad_StructurallyInvalid(t *testing.T) {
	// Duplicate patch numbers: well-formed JSON, invalid index.
	path := filepath.Join(t.TempDir(), IndexFilename)
	bad := `{"next_patch_number": 5, "patches": [
		{"patch_number":1,"timestamp":"2026-08-26T10:00:00Z","operation_type":"edit","file_path":"/f","patch_file":"patch_001.diff"},
		{"patch_number":1,"timestamp":"2026-08-26T10:01:00Z","operation_type":"edit","file_path":"/f","patch_file":"patch_001.diff"}
	]}`
	os.WriteFile(path, []byte(bad), 0o644)
	ix := Load(path)
	if ix.NextPatchNumber != 1 || ix.Count() != 0 {
		t.Error("structurally invalid index should reset to fresh")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFilename)
	ix := populated(3)
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(path)
	if loaded.NextPatchNumber != ix.NextPatchNumber {
		t.Errorf("next number %d, want %d", loaded.NextPatchNumber, ix.NextPatchNumber)
	}
	if loaded.Count() != 3 {
		t.Errorf("count %d, want 3", loaded.Count())
	}
	if loaded.Patches[0].PatchNumber != 1 || loaded.Patches[2].PatchNumber != 3 {
		t.Errorf("order not preserved: %+v", loaded.Patches)
	}
}

func TestRemove(t *testing.T) {
	ix := populated(3)
	if !ix.Remove(2) {
		t.Fatal("Remove(2) should succeed")
	}
	if ix.Remove(2) {
		t.Error("second Remove(2) should fail")
	}
	if ix.Count() != 2 || ix.Get(2) != nil {
		t.Error("entry 2 still present")
	}
	// Order of survivors preserved.
	if ix.Patches[0].PatchNumber != 1 || ix.Patches[1].PatchNumber != 3 {
		t.Errorf("unexpected order: %+v", ix.Patches)
	}
}

func TestRemoveMany(t *testing.T) {
	ix := populated(5)
	n := ix.RemoveMany(map[int]struct{}{1: {}, 3: {}, 99: {}})
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if ix.Count() != 3 {
		t.Errorf("count %d, want 3", ix.Count())
	}
}

func TestRemoveLastAndFirst(t *testing.T) {
	ix := populated(5)

	last := ix.RemoveLast(2)
	if len(last) != 2 || last[0].PatchNumber != 4 || last[1].PatchNumber != 5 {
		t.Errorf("RemoveLast = %+v", last)
	}

	first := ix.RemoveFirst(2)
	if len(first) != 2 || first[0].PatchNumber != 1 || first[1].PatchNumber != 2 {
		t.Errorf("RemoveFirst = %+v", first)
	}

	if ix.Count() != 1 || ix.Patches[0].PatchNumber != 3 {
		t.Errorf("remaining: %+v", ix.Patches)
	}

	// Asking for more than available drains without panicking.
	if got := ix.RemoveLast(10); len(got) != 1 {
		t.Errorf("RemoveLast(10) = %+v", got)
	}
	if got := ix.RemoveFirst(10); got != nil {
		t.Errorf("RemoveFirst on empty = %+v", got)
	}
}

func TestMonotonicNumbering(t *testing.T) {
	ix := populated(5)
	ix.RemoveMany(map[int]struct{}{2: {}, 5: {}})

	// The counter never decreases, even after removing the newest entry.
	if ix.NextNumber() != 6 {
		t.Errorf("next %d, want 6", ix.NextNumber())
	}
	seen := map[int]bool{}
	for _, m := range ix.Patches {
		if seen[m.PatchNumber] {
			t.Errorf("duplicate live number %d", m.PatchNumber)
		}
		seen[m.PatchNumber] = true
		if m.PatchNumber >= ix.NextNumber() {
			t.Errorf("live number %d not below next %d", m.PatchNumber, ix.NextNumber())
		}
	}
}

func TestLast(t *testing.T) {
	ix := populated(5)
	got := ix.Last(2)
	if len(got) != 2 || got[0].PatchNumber != 4 || got[1].PatchNumber != 5 {
		t.Errorf("Last(2) = %+v", got)
	}
	if got := ix.Last(10); len(got) != 5 {
		t.Errorf("Last(10) returned %d entries", len(got))
	}
	if ix.Last(0) != nil {
		t.Error("Last(0) should be nil")
	}
}

func TestSince(t *testing.T) {
	ix := populated(5)
	cutoff, _ := ix.Patches[2].Time() // timestamp of entry 3

	got := ix.Since(cutoff)
	if len(got) != 3 || got[0].PatchNumber != 3 {
		t.Errorf("Since should be inclusive and chronological: %+v", got)
	}

	if got := ix.Since(cutoff.Add(time.Hour)); len(got) != 0 {
		t.Errorf("future cutoff should match nothing: %+v", got)
	}
}

func TestSince_SkipsInvalidTimestamps(t *testing.T) {
	ix := populated(3)
	ix.Patches[1].Timestamp = "not-a-timestamp"

	got := ix.Since(time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC))
	if len(got) != 2 {
		t.Errorf("invalid entry should be skipped, got %+v", got)
	}
}

func TestOperationCounts(t *testing.T) {
	ix := NewIndex()
	for i, op := range []string{"write", "edit", "edit", "delete"} {
		m := meta(i+1, "2026-08-26T10:00:00Z")
		m.OperationType = op
		ix.Add(m)
		ix.IncrementNumber()
	}
	counts := ix.OperationCounts()
	if counts["edit"] != 2 || counts["write"] != 1 || counts["delete"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestHistory(t *testing.T) {
	ix := populated(5)
	got := ix.History(3)
	if len(got) != 3 || got[0].PatchNumber != 5 || got[2].PatchNumber != 3 {
		t.Errorf("History(3) = %+v", got)
	}
	if got := ix.History(0); len(got) != 5 || got[0].PatchNumber != 5 {
		t.Errorf("History(0) = %+v", got)
	}
}
