package commands

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"txexport/internal/export"
	"txexport/internal/ledger"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	exportFormat *string
	exportOutput *string
)

func init() {
	exportFormat = exportCmd.Flags().StringP("format", "f", "csv", "The export format: csv, json, xlsx or table.")
	exportOutput = exportCmd.Flags().StringP("output", "o", "", "The file to write, - writes to stdout. Defaults to amazon-transactions.<ext>.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--format <csv|json|xlsx|table>] [-o <file>]",
	Short: "Writes every captured transaction to a file.",
	Run: func(cmd *cobra.Command, args []string) {
		format, err := export.ParseFormat(*exportFormat)
		if err != nil {
			serviceutil.Fatal("invalid format", err)
		}

		cfg := loadConfig()
		svc, components := openService(cfg, nil)
		defer components.Close()

		session, err := svc.Session(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to load session", err)
		}
		if len(session.Records) == 0 {
			slog.Warn("no transactions captured yet, nothing to export")
			return
		}

		output := *exportOutput
		if output == "" {
			output = "amazon-transactions." + format.Extension()
		}
		if output == "-" {
			err = writeExport(os.Stdout, format, session)
			if err != nil {
				serviceutil.Fatal("failed to export", err)
			}
			return
		}

		f, err := os.Create(output)
		if err != nil {
			serviceutil.Fatal("failed to create output file", err)
		}
		err = writeExport(f, format, session)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			serviceutil.Fatal("failed to export", err)
		}
		fmt.Fprintf(os.Stderr, "exported %d transactions to %s\n", len(session.Records), output)
	},
}

func writeExport(w io.Writer, format export.Format, session ledger.Session) error {
	buffered := bufio.NewWriter(w)
	err := export.Write(buffered, format, session)
	if err != nil {
		return err
	}
	return buffered.Flush()
}
