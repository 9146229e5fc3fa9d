package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"txexport/internal/browser"
	"txexport/internal/components/telemetry"
	"txexport/internal/pagination"
	"txexport/internal/service"
	libtelemetry "txexport/lib/telemetry"
	"txexport/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	capturePages *int
	captureUrl   *string
)

func init() {
	capturePages = captureCmd.Flags().Int("pages", 0, "The number of pages to capture, 0 falls back to the config and then to the stored setting.")
	captureUrl = captureCmd.Flags().String("url", "", "The transactions page to open, defaults to base_url + transactions_path.")
	rootCmd.AddCommand(captureCmd)
}

var captureCmd = &cobra.Command{
	Use:   "capture [--pages <n>] [--url <url>]",
	Short: "Opens the transactions page in Chrome and captures one or more pages of it.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		target := *captureUrl
		if target == "" {
			var err error
			target, err = cfg.TransactionsUrl()
			if err != nil {
				serviceutil.Fatal("failed to build transactions url", err)
			}
		}

		browserOpts, err := cfg.BrowserOptions()
		if err != nil {
			serviceutil.Fatal("failed to resolve browser options", err)
		}
		page, err := browser.Open(ctx, browserOpts, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to launch browser", err)
		}
		defer page.Close()

		err = page.Navigate(ctx, target)
		if err != nil {
			serviceutil.Fatal("failed to open transactions page", err)
		}

		slog.Info("waiting for transactions to show up, sign in if asked", "timeout", cfg.LoginTimeout())
		loginCtx, cancel := context.WithTimeout(ctx, cfg.LoginTimeout())
		err = page.WaitVisible(loginCtx, cfg.Layout.DateGroup)
		cancel()
		if err != nil {
			serviceutil.Fatal("transactions did not show up", err)
		}

		status := newStatusLine(os.Stderr)
		svc, components := openService(
			cfg,
			status,
			service.WithPage(page),
			service.WithPaginationOptions(cfg.PaginationOptions()),
		)
		defer components.Close()

		discarded, err := svc.Start(ctx)
		if err != nil {
			serviceutil.Fatal("failed to load session", err)
		}
		if discarded {
			slog.Warn("discarded a multi-page run an earlier invocation did not finish")
		}

		pages := *capturePages
		if pages == 0 {
			pages = cfg.Pages
		}

		if pages == 1 {
			result, err := svc.CaptureCurrentPage(ctx)
			status.Done()
			if err != nil {
				slog.Error("capture failed", "err", err)
				return
			}
			fmt.Println(result.String())
			return
		}

		libtelemetry.InstrumentPerfStats(ctx, 5*time.Second)
		summary, err := svc.CapturePages(ctx, pages)
		status.Done()
		if err != nil {
			serviceutil.Fatal("failed to start multi-page capture", err)
		}
		if summary.State == pagination.Aborted {
			slog.Warn("multi-page capture aborted", "err", summary.Cause)
		}
		fmt.Println(summary.String())
	},
}
