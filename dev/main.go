package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	devenv "txexport/dev/env"

	_ "modernc.org/sqlite"
)

// setup prepares the `<dev_state>` directory of the workspace at root: the
// session database and a sample config.json5. Recreating wipes the stored
// session and the browser profile, an existing config is always kept.
func setup(root string, recreate bool) (string, error) {
	state := filepath.Join(root, "dev", ".state")

	if recreate {
		err := os.RemoveAll(state)
		if err != nil {
			return "", fmt.Errorf("remove %s: %w", state, err)
		}
	}
	err := os.MkdirAll(state, 0777)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", state, err)
	}

	err = CreateSessionDB(state)
	if err != nil {
		return "", fmt.Errorf("create session db: %w", err)
	}
	err = WriteSampleConfig(root)
	if err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return state, nil
}

func main() {
	recreate := flag.Bool("recreate", false, "wipe the stored session and browser profile before setting up")
	flag.Parse()

	root, err := devenv.GetWorkspaceRoot()
	if err != nil {
		slog.Error("run this from inside the txexport workspace", "err", err.Error())
		os.Exit(1)
	}

	state, err := setup(root, *recreate)
	if err != nil {
		slog.Error("failed to set up dev state", "err", err.Error())
		os.Exit(1)
	}
	PrintConfigLocations()
	slog.Info("dev state ready, sign in on the first `txexport capture`", "state", state)
}
