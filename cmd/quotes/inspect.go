package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/ocr"
)

var (
	inspectRender   bool
	inspectShowText bool
)

// inspectCmd shows what the pipeline would send for one PDF, without calling a model.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.pdf>",
	Short: "Show the text layer and image fallback decision for a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := common.LoadConfig()
		logger := newLogger(cfg)
		out := cmd.OutOrStdout()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		x := ocr.NewExtractor(ocr.Config{
			Pdftoppm:      cfg.PDF.Pdftoppm,
			DPI:           cfg.PDF.DPI,
			MinTextChars:  cfg.PDF.MinTextChars,
			MaxImagePages: cfg.PDF.MaxImagePages,
			CacheEntries:  cfg.PDF.CacheEntries,
		}, logger)

		start := time.Now()
		text := x.ExtractText(data)
		fmt.Fprintf(out, "file:        %s\n", args[0])
		fmt.Fprintf(out, "sha256:      %s\n", ocr.ContentHash(data))
		fmt.Fprintf(out, "pages:       %d\n", x.PageCount(data))
		fmt.Fprintf(out, "text chars:  %d (threshold %d)\n", len([]rune(text)), cfg.PDF.MinTextChars)
		fmt.Fprintf(out, "needs image: %t\n", x.NeedsImages(text))
		fmt.Fprintf(out, "renderer:    %t\n", x.RendererAvailable())

		if inspectRender || x.NeedsImages(text) {
			pages, err := x.RenderPages(cmd.Context(), data, x.MaxImagePages())
			if err != nil {
				fmt.Fprintf(out, "render:      FAILED (%v)\n", err)
			} else {
				for _, p := range pages {
					fmt.Fprintf(out, "render:      page %d %s %d bytes\n", p.Page, p.MIMEType, len(p.Data))
				}
			}
		}
		fmt.Fprintf(out, "elapsed:     %s\n", time.Since(start).Round(time.Millisecond))
		if inspectShowText && text != "" {
			fmt.Fprintf(out, "\n%s\n", text)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectRender, "render", false, "rasterize pages even when the text layer is long enough")
	inspectCmd.Flags().BoolVar(&inspectShowText, "text", false, "print the normalized text layer")
	rootCmd.AddCommand(inspectCmd)
}
