package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"txexport/internal/components/db"
)

func createDb(dbPath, schema string) error {
	_, err := os.Stat(dbPath)
	if err == nil {
		fmt.Println("database already created at", dbPath)
		return nil
	}

	fmt.Println("creating database at", dbPath)
	sqlite, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer sqlite.Close()
	_, err = sqlite.Exec(schema)
	return err
}

func CreateSessionDB(state string) error {
	return createDb(filepath.Join(state, "session.db"), db.Schema)
}

const sampleConfig = `{
  base_url: "https://www.amazon.com",
  transactions_path: "/cpe/yourpayments/transactions",
  storage: { file: "<dev_state>/session.db" },
  browser: { headless: false, user_data_dir: "<dev_state>/chrome" },
  enrichment: { detail_path: "/gp/css/summary/edit.html?orderID={id}" },
  pages: 1,
}
`

func WriteSampleConfig(root string) error {
	name := filepath.Join(root, "config.json5")
	_, err := os.Stat(name)
	if err == nil {
		fmt.Println("config.json5 already exists, leaving it alone")
		return nil
	}
	return os.WriteFile(name, []byte(sampleConfig), 0600)
}

func PrintConfigLocations() {
	slog.Info("wrote config.json5 in the repository root, put secrets or personal overrides in config.local.json5 instead.")
}
