package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"txexport/internal/components/db"

	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	root := t.TempDir()

	state, err := setup(root, false)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "dev", ".state"), state)

	sqlite, err := sql.Open("sqlite", filepath.Join(state, "session.db"))
	require.NoError(t, err)
	_, err = db.New(sqlite).GetSlot(context.Background(), db.SessionKey)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, sqlite.Close())

	config, err := os.ReadFile(filepath.Join(root, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, sampleConfig, string(config))

	// recreating wipes the state but keeps an edited config
	err = os.WriteFile(filepath.Join(root, "config.json5"), []byte("{ pages: 3 }"), 0600)
	require.NoError(t, err)
	profile := filepath.Join(state, "chrome")
	require.NoError(t, os.MkdirAll(profile, 0777))

	_, err = setup(root, true)
	require.NoError(t, err)
	require.NoDirExists(t, profile)
	require.FileExists(t, filepath.Join(state, "session.db"))
	config, err = os.ReadFile(filepath.Join(root, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "{ pages: 3 }", string(config))
}
