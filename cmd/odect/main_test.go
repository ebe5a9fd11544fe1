package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binary, _ = filepath.Abs("../../bin/odect")

func TestOdectExecutable(t *testing.T) {
	if _, err := os.Stat(binary); err != nil {
		t.Skipf("odect binary not available, try to run `go build -o bin/odect ./cmd/odect` first: %s", err)
	}

	out, err := exec.Command(binary, "--version").CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(out), "odect")

	configPath, err := filepath.Abs("../../build/config/odect/odect.yml")
	require.NoError(t, err)

	// Inverted range fails before any request is made
	err = exec.Command(binary, "--config.file", configPath, "--start", "20230702", "--end", "20230701").Run()
	require.Error(t, err)
}
