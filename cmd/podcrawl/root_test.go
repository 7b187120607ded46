package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeedFileSkipsBlankLinesAndComments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seeds.txt")
	content := "https://example.com/a\n\n# a comment\nhttps://example.com/b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
}

func TestReadSeedFileReportsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := readSeedFile("/nonexistent/seeds.txt")
	assert.Error(t, err)
}

func TestExecuteReturnsConfigErrorCodeOnMissingConfig(t *testing.T) {
	configPath = "/nonexistent/config.yaml"
	resume = false
	t.Cleanup(func() { configPath = "config.yaml" })

	seedPath := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(seedPath, []byte("https://example.com\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{seedPath, "ops@example.com", "--config", configPath})
	err := cmd.Execute()
	require.Error(t, err)

	var ce *configError
	assert.ErrorAs(t, err, &ce)
}
