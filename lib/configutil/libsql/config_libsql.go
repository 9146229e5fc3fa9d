package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	devenv "txexport/dev/env"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct describes where the capture session lives. A non-empty Url selects a
// remote libsql database, otherwise File is opened with the local sqlite driver.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url" validate:"omitempty,url"`
	AuthToken string `json:"auth_token" envconfig:"AUTH_TOKEN"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return config.openRemote()
	}
	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if config.File == ":memory:" {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}

	dbpath, err := devenv.ResolvePath(config.File)
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(dbpath)
	if os.IsNotExist(statErr) {
		f, err := os.Create(dbpath)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (config Struct) openRemote() (*sql.DB, error) {
	dsn, err := url.Parse(config.Url)
	if err != nil {
		return nil, fmt.Errorf("parse libsql url: %w", err)
	}
	if config.AuthToken != "" {
		query := dsn.Query()
		query.Set("authToken", config.AuthToken)
		dsn.RawQuery = query.Encode()
	}
	return sql.Open("libsql", dsn.String())
}
