package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string `json:"base_url" validate:"required,url"`
	Pages   int    `json:"pages" validate:"min=1,max=50"`
	Delay   int    `json:"delay_ms"`
}

func writeFile(t *testing.T, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](name)
	require.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, name, `{
		// comments are allowed
		base_url: "https://www.amazon.com",
		pages: 3,
		delay_ms: 250,
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ pages: 7 }`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, testConfig{
		BaseUrl: "https://www.amazon.com",
		Pages:   7,
		Delay:   250,
	}, cfg)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	defaults := testConfig{BaseUrl: "https://www.amazon.com", Pages: 1, Delay: 250}

	cfg, err := Load(name, "TXEXPORT_TEST", defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)

	writeFile(t, name, `{ pages: 4 }`)
	t.Setenv("TXEXPORT_TEST_DELAY", "10")

	cfg, err = Load(name, "TXEXPORT_TEST", defaults)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Pages)
	require.Equal(t, 10, cfg.Delay)
	require.Equal(t, "https://www.amazon.com", cfg.BaseUrl)

	writeFile(t, name, `{ pages: 99 }`)
	_, err = Load(name, "TXEXPORT_TEST", defaults)
	require.Error(t, err)
}
