package patchindex

import (
	"fmt"
	"path/filepath"

	"github.com/benhmoore/Code-Ally-sub003/internal/patchstore"
)

// ValidateMeta checks a single catalog entry before it is trusted or
// persisted.
func ValidateMeta(m Meta) error {
	if m.PatchNumber <= 0 {
		return fmt.Errorf("patch number %d is not positive", m.PatchNumber)
	}
	if m.Timestamp == "" {
		return fmt.Errorf("patch %d has empty timestamp", m.PatchNumber)
	}
	if m.OperationType == "" {
		return fmt.Errorf("patch %d has empty operation type", m.PatchNumber)
	}
	if m.FilePath == "" {
		return fmt.Errorf("patch %d has empty file path", m.PatchNumber)
	}
	if m.PatchFile == "" || m.PatchFile != filepath.Base(m.PatchFile) {
		return fmt.Errorf("patch %d has invalid patch file name %q", m.PatchNumber, m.PatchFile)
	}
	if !patchstore.IsPatchFile(m.PatchFile) {
		return fmt.Errorf("patch %d file name %q does not match patch_NNN.diff", m.PatchNumber, m.PatchFile)
	}
	return nil
}

// Validate checks structural invariants of a whole index: valid entries,
// no duplicate numbers, and a next counter above every live number.
func Validate(ix *Index) error {
	if ix == nil {
		return fmt.Errorf("nil index")
	}
	if ix.NextPatchNumber < 1 {
		return fmt.Errorf("next patch number %d is below 1", ix.NextPatchNumber)
	}
	seen := make(map[int]struct{}, len(ix.Patches))
	for _, m := range ix.Patches {
		if err := ValidateMeta(m); err != nil {
			return err
		}
		if _, dup := seen[m.PatchNumber]; dup {
			return fmt.Errorf("duplicate patch number %d", m.PatchNumber)
		}
		seen[m.PatchNumber] = struct{}{}
		if m.PatchNumber >= ix.NextPatchNumber {
			return fmt.Errorf("patch number %d is not below next counter %d", m.PatchNumber, ix.NextPatchNumber)
		}
	}
	return nil
}
