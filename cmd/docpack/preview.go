package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/documentpacker/internal/kind"
	"github.com/Lllllllleong/documentpacker/internal/redact"
)

var previewDir string

func init() {
	previewCmd.Flags().StringVarP(&previewDir, "out-dir", "d", ".", "Directory for the PNG snapshots")
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Render before and after redaction snapshots",
	Long: `Preview writes <name>.original.png and <name>.redacted.png so the masked
regions can be checked before packing.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	items, err := loadItems(ctx, args, nil)
	if err != nil {
		return err
	}
	it := items[0]
	if err := kind.Validate(it); err != nil {
		return err
	}

	snap, err := redact.New(recognizer(), slog.Default()).Preview(ctx, it.Data, it.Kind)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(it.Name, filepath.Ext(it.Name))
	original := filepath.Join(previewDir, base+".original.png")
	redacted := filepath.Join(previewDir, base+".redacted.png")
	if err := os.WriteFile(original, snap.Original, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(redacted, snap.Redacted, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\nmasked: %t\n", original, redacted, snap.Masked)
	return nil
}
