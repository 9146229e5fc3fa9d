package devenv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	plain, err := ResolvePath("/tmp/session.db")
	require.NoError(t, err)
	require.Equal(t, "/tmp/session.db", plain)

	root, err := GetWorkspaceRoot()
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := ResolvePath("<dev_state>/session.db")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "dev", ".state", "session.db"), resolved)
}
