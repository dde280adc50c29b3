package patchindex

// Policy caps how many patches a session may keep and how many bytes they
// may occupy. Zero values disable the corresponding limit.
type Policy struct {
	MaxPatches    int
	MaxTotalBytes int64
}

// Evict returns the oldest-first entries that must be removed so the index
// satisfies both limits. sizeOf reports the on-disk byte size of a patch
// document by basename. The index itself is not modified; the caller
// removes entries and files once the documents are gone.
func (p Policy) Evict(ix *Index, sizeOf func(name string) int64) []Meta {
	if ix == nil || len(ix.Patches) == 0 {
		return nil
	}

	count := len(ix.Patches)
	var total int64
	if p.MaxTotalBytes > 0 {
		for _, m := range ix.Patches {
			total += sizeOf(m.PatchFile)
		}
	}

	var evict []Meta
	for _, m := range ix.Patches {
		overCount := p.MaxPatches > 0 && count > p.MaxPatches
		overSize := p.MaxTotalBytes > 0 && total > p.MaxTotalBytes
		if !overCount && !overSize {
			break
		}
		evict = append(evict, m)
		count--
		total -= sizeOf(m.PatchFile)
	}
	return evict
}
