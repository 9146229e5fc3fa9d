package commands

import (
	"fmt"
	"log/slog"
	"os"
	"txexport/lib/util/serviceutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(captureFileCmd)
}

var captureFileCmd = &cobra.Command{
	Use:   "capture-file <page.html>...",
	Short: "Captures saved copies of the transactions page, one page per file.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		status := newStatusLine(os.Stderr)
		svc, components := openService(cfg, status)
		defer components.Close()

		for _, name := range args {
			f, err := os.Open(name)
			if err != nil {
				serviceutil.Fatal("failed to open page", err)
			}
			doc, err := goquery.NewDocumentFromReader(f)
			f.Close()
			if err != nil {
				serviceutil.Fatal("failed to parse page", err)
			}

			result, err := svc.CaptureDocument(ctx, doc)
			status.Done()
			if err != nil {
				slog.Error("capture failed", "file", name, "err", err)
				continue
			}
			fmt.Printf("%s: %s\n", name, result.String())
		}
	},
}
