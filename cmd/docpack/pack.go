package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/documentpacker/internal/gcp"
	"github.com/Lllllllleong/documentpacker/internal/hints"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/pack"
	"github.com/Lllllllleong/documentpacker/internal/redact"
	"github.com/Lllllllleong/documentpacker/internal/services"
	"github.com/Lllllllleong/documentpacker/internal/template"
)

var (
	packTemplate string
	packOut      string
	packRedact   bool
	packOCR      bool
	packAI       bool
	packFields   map[string]string
	packQuiet    bool
)

func init() {
	packCmd.Flags().StringVarP(&packTemplate, "template", "t", template.DefaultTemplate, "File name template")
	packCmd.Flags().StringVarP(&packOut, "out", "o", "", "Archive path (defaults to DocPackr_<date>_<time>.zip)")
	packCmd.Flags().BoolVar(&packRedact, "redact", false, "Mask sensitive regions before packing")
	packCmd.Flags().BoolVar(&packOCR, "ocr", false, "Read document text to infer DocType and Side")
	packCmd.Flags().BoolVar(&packAI, "ai", false, "Ask Vertex AI for hints (needs PROJECT_ID)")
	packCmd.Flags().StringToStringVarP(&packFields, "field", "f", nil, "Field value applied to every file, e.g. -f Last=Doe")
	packCmd.Flags().BoolVarP(&packQuiet, "quiet", "q", false, "Do not print progress")
}

var packCmd = &cobra.Command{
	Use:   "pack <file>...",
	Short: "Pack files into a zip archive with a manifest",
	Long: `Pack renames each file from the template, compresses it to a PDF and
writes the results plus manifest.txt into one zip archive.

Examples:
  # Pack two scans with the default template
  docpack pack -f Last=Doe -f First=Jane passport.jpg i20.pdf

  # Redact and use a custom template
  docpack pack --redact -t "{{upper(Last)}}_{{DocType||Document}}.pdf" *.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPack,
}

func runPack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	items, err := loadItems(ctx, args, packFields)
	if err != nil {
		return err
	}
	opts := models.PackOptions{Redact: packRedact, OCREnabled: packOCR, AIEnabled: packAI}

	r := recognizer()
	var suggester hints.Suggester
	if packAI {
		vc, err := gcp.NewVertexClient(ctx, gcp.GetEnv("PROJECT_ID", ""), gcp.GetEnv("VERTEX_AI_REGION", "us-central1"))
		if err != nil {
			return err
		}
		defer vc.Close()
		suggester = vc
	}
	inferrer := hints.New(r, suggester)
	for _, it := range items {
		hints.Apply(it, inferrer.Infer(ctx, it, opts))
	}

	orch := pack.New(redact.New(r, slog.Default()))
	res, err := orch.Pack(ctx, items, packTemplate, func(pct int) {
		if !packQuiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rpacking... %3d%%", pct)
		}
	}, opts)
	if !packQuiet {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}
	models.ApplyUpdates(items, res.Updates)

	out := packOut
	if out == "" {
		out = services.ArchiveName(time.Now())
	}
	if err := os.WriteFile(out, res.Archive, 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, it := range items {
		line := fmt.Sprintf("%s -> %s (%d -> %d bytes)", it.Name, it.RenderedName, it.OriginalSize, it.FinalSize)
		if it.Note != "" {
			line += " [" + it.Note + "]"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "wrote %s (%d bytes)\n", displayPath(out), len(res.Archive))
	return nil
}

// displayPath returns p made absolute, or p itself when that fails.
func displayPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
