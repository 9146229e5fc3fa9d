package configlibsql

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		db, err := Struct{File: ":memory:"}.OpenDB()
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		require.NoError(t, db.Ping())
	})

	t.Run("file is created", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.db")
		db, err := Struct{File: path}.OpenDB()
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		require.FileExists(t, path)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := Struct{}.OpenDB()
		require.Error(t, err)
	})
}
