// Package main implements docpack, a local front end for the packing pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/documentpacker/internal/kind"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/ocr"
)

var (
	verbose bool
	ocrLang string
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docpack",
	Short: "Rename, redact, compress and zip identity documents",
	Long: `docpack packs a set of PDF and image files into a single zip archive.

Every file is renamed from a template, optionally redacted, compressed,
and listed in a manifest with its SHA-256 digest.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ocrLang, "ocr-lang", "eng", "Tesseract languages, joined with +")
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(estimateCmd)
}

func recognizer() ocr.Recognizer {
	return ocr.NewTesseract(ocr.TesseractConfig{Languages: strings.Split(ocrLang, "+")}, slog.Default())
}

// loadItems reads every path into a queued DocumentItem, in argument order.
func loadItems(ctx context.Context, paths []string, fields map[string]string) ([]*models.DocumentItem, error) {
	items := make([]*models.DocumentItem, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		name := filepath.Base(p)
		items = append(items, kind.NewItem(uuid.NewString(), name, mimeOf(name), data, models.FieldMap(fields).Clone()))
	}
	return items, nil
}

func mimeOf(name string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}
