package commands

import (
	"errors"
	"os"
	"txexport/internal/export"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var previewFormat *string

func init() {
	previewFormat = previewCmd.Flags().StringP("format", "f", "table", "The preview format: table, csv or json.")
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview [--format <table|csv|json>]",
	Short: "Prints the captured transactions.",
	Run: func(cmd *cobra.Command, args []string) {
		format, err := export.ParseFormat(*previewFormat)
		if err != nil {
			serviceutil.Fatal("invalid format", err)
		}
		if format == export.FormatXLSX {
			serviceutil.Fatal("invalid format", errors.New("xlsx cannot be previewed, use export instead"))
		}

		cfg := loadConfig()
		svc, components := openService(cfg, nil)
		defer components.Close()

		session, err := svc.Session(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to load session", err)
		}
		err = writeExport(os.Stdout, format, session)
		if err != nil {
			serviceutil.Fatal("failed to render preview", err)
		}
	},
}
