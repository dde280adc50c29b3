package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/benhmoore/Code-Ally-sub003/internal/manager"
)

var (
	flagLast  int
	flagPatch int
	flagSince string
	flagLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List captured patches, most recent first",
		RunE:  runHistory,
	}

	previewCmd = &cobra.Command{
		Use:   "preview",
		Short: "Show what an undo would change, without touching anything",
		RunE:  runPreview,
	}

	undoCmd = &cobra.Command{
		Use:   "undo",
		Short: "Revert captured operations",
		RunE:  runUndo,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show patch storage statistics for a session",
		RunE:  runStats,
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Reconcile the patch index with the files on disk",
		RunE:  runCheck,
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all patches for a session and reset its index",
		RunE:  runClear,
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup <session-id>",
		Short: "Remove a session's patch directory entirely",
		Args:  cobra.ExactArgs(1),
		RunE:  runCleanup,
	}
)

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 0, "max entries to show (0 = all)")
	for _, c := range []*cobra.Command{previewCmd, undoCmd} {
		c.Flags().IntVar(&flagLast, "last", 0, "operate on the last N patches")
		c.Flags().IntVar(&flagPatch, "patch", 0, "operate on a single patch number")
		c.Flags().StringVar(&flagSince, "since", "", "operate on patches at or after an RFC 3339 timestamp")
	}
}

// selectorCount validates that exactly one of --last/--patch/--since is set.
func selectorCount() int {
	n := 0
	if flagLast > 0 {
		n++
	}
	if flagPatch > 0 {
		n++
	}
	if flagSince != "" {
		n++
	}
	return n
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	m, err := newManager()
	if err != nil {
		return err
	}
	entries := m.History(flagLimit)
	if len(entries) == 0 {
		fmt.Println("No patches recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("#%d  %s  %-9s  %s\n", e.PatchNumber, e.Timestamp, e.OperationType, e.FilePath)
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	if selectorCount() != 1 {
		return fmt.Errorf("exactly one of --last, --patch, or --since is required")
	}
	m, err := newManager()
	if err != nil {
		return err
	}

	var previews []manager.UndoPreview
	switch {
	case flagLast > 0:
		previews = m.PreviewLast(flagLast)
	case flagPatch > 0:
		previews = m.PreviewSingle(flagPatch)
	default:
		previews = m.PreviewSince(flagSince)
	}

	if len(previews) == 0 {
		fmt.Println("Nothing to preview.")
		return nil
	}
	for _, p := range previews {
		fmt.Printf("#%d  %s  %s (%s)\n", p.PatchNumber, p.Timestamp, p.FilePath, p.OperationType)
		switch {
		case p.PredictedContent == "" && p.CurrentContent != "":
			fmt.Println("  would delete the file")
		case p.CurrentContent == "" && p.PredictedContent != "":
			fmt.Printf("  would recreate the file (%d bytes)\n", len(p.PredictedContent))
		default:
			fmt.Printf("  %d bytes -> %d bytes\n", len(p.CurrentContent), len(p.PredictedContent))
		}
	}
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	if selectorCount() != 1 {
		return fmt.Errorf("exactly one of --last, --patch, or --since is required")
	}
	m, err := newManager()
	if err != nil {
		return err
	}

	var res manager.UndoResult
	switch {
	case flagLast > 0:
		res = m.UndoLast(flagLast)
	case flagPatch > 0:
		res = m.UndoSingle(flagPatch)
	default:
		res = m.UndoSince(flagSince)
	}
	m.Flush()

	for _, f := range res.RevertedFiles {
		fmt.Println("reverted", f)
	}
	if len(res.FailedOperations) > 0 {
		return fmt.Errorf("undo failed:\n  %s", strings.Join(res.FailedOperations, "\n  "))
	}
	if !res.Success {
		fmt.Println("Nothing to undo.")
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	m, err := newManager()
	if err != nil {
		return err
	}
	s := m.Stats()
	fmt.Printf("Session:      %s\n", s.SessionID)
	fmt.Printf("Patches:      %d\n", s.PatchCount)
	fmt.Printf("Storage:      %s\n", humanize.Bytes(uint64(s.TotalBytes)))
	fmt.Printf("Next number:  %d\n", s.NextPatchNumber)
	if len(s.Operations) > 0 {
		ops := make([]string, 0, len(s.Operations))
		for op := range s.Operations {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		fmt.Println("Operations:")
		for _, op := range ops {
			fmt.Printf("  %-10s %d\n", op, s.Operations[op])
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	m, err := newManager()
	if err != nil {
		return err
	}
	m.ValidateIntegrity()
	fmt.Println("Integrity check complete.")
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	m, err := newManager()
	if err != nil {
		return err
	}
	m.ClearAll()
	fmt.Println("All patches cleared.")
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	m.CleanupSession(args[0])
	fmt.Println("Session patch directory removed.")
	return nil
}
