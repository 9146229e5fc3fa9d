package serviceutil

import (
	"log/slog"
	"os"
)

// Fatal logs the error and exits, it is meant for setup failures in main
// packages only.
func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
