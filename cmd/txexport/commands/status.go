package commands

import (
	"fmt"
	"txexport/internal/export"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarizes the stored session.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		svc, components := openService(cfg, nil)
		defer components.Close()

		session, err := svc.Session(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to load session", err)
		}
		fmt.Println(export.Summary(session))
	},
}
