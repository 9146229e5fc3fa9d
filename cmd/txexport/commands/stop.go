package commands

import (
	"fmt"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Asks a running multi-page capture to stop before its next page.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		svc, components := openService(cfg, nil)
		defer components.Close()

		err := svc.RequestStop(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to request stop", err)
		}
		fmt.Println("stop requested")
	},
}
