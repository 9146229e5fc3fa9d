package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var clearYes *bool

func init() {
	clearYes = clearCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt.")
	rootCmd.AddCommand(clearCmd)
}

var clearCmd = &cobra.Command{
	Use:   "clear [--yes]",
	Short: "Deletes every captured transaction.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		svc, components := openService(cfg, nil)
		defer components.Close()

		if !*clearYes {
			session, err := svc.Session(ctx)
			if err != nil {
				serviceutil.Fatal("failed to load session", err)
			}
			fmt.Printf("Delete %d captured transactions? [y/N] ", len(session.Records))
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			answer = strings.ToLower(strings.TrimSpace(answer))
			if answer != "y" && answer != "yes" {
				fmt.Println("nothing deleted")
				return
			}
		}

		err := svc.Clear(ctx)
		if err != nil {
			serviceutil.Fatal("failed to clear session", err)
		}
		fmt.Println("session cleared")
	},
}
