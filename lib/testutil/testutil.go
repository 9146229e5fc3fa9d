package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"txexport/lib/telemetry"

	_ "modernc.org/sqlite"
)

type DBParams struct {
	Name string
	// if unspecified, it will skip applying a schema
	Schema string
	// if unspecified, it will use `:memory:`
	Path string
}

// SetupDB opens a sqlite database for a test, the returned func closes it
// and shuts down any telemetry that was set up for the test.
func SetupDB(t testing.TB, params DBParams) (*sql.DB, func()) {
	cleanup := telemetry.SetupForTesting("test:" + params.Name)

	dbpath := ":memory:"
	if params.Path != "" {
		dbpath = params.Path
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is its own database
	sqlite.SetMaxOpenConns(1)

	if params.Schema != "" {
		_, err = sqlite.Exec(params.Schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}

	return sqlite, func() {
		sqlite.Close()
		cleanup()
	}
}

// ReadFixture reads a file under the calling package's testdata directory.
func ReadFixture(t testing.TB, name string) []byte {
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return contents
}
