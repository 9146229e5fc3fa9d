package commands

import (
	"fmt"
	"strconv"
	"txexport/internal/ledger"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pagesCmd)
}

var pagesCmd = &cobra.Command{
	Use:   "pages [<n>]",
	Short: fmt.Sprintf("Shows or sets how many pages capture walks by default (%d-%d).", ledger.MinPagesToCapture, ledger.MaxPagesToCapture),
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		svc, components := openService(cfg, nil)
		defer components.Close()

		if len(args) == 0 {
			session, err := svc.Session(ctx)
			if err != nil {
				serviceutil.Fatal("failed to load session", err)
			}
			fmt.Println(session.PagesToCapture)
			return
		}

		n, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid page count", err)
		}
		pages, err := svc.SetPages(ctx, n)
		if err != nil {
			serviceutil.Fatal("failed to store page count", err)
		}
		fmt.Printf("capture now walks %d page(s)\n", pages)
	},
}
