package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Atharva-Kanherkar/rin/internal/gate"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "storage_path: " + filepath.Join(dir, "data") + "\nlogging:\n  level: error\nnotify:\n  desktop: false\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

const cliScript = `
start: 2026-10-14T09:00:00Z
interval: 5s
ticks:
  - title: "main.go - rin - Visual Studio Code"
    app: code
    keyboard: true
    repeat: 10
  - title: "journal - Obsidian"
    app: obsidian
    repeat: 2
`

func TestCLI_Workflow(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "kb", "add", "--config", cfgPath, "--app", "Obsidian.exe", "--reaction", "Journaling again?")
	require.NoError(t, err)
	id, _, ok := strings.Cut(out, "\t")
	require.True(t, ok, out)
	assert.Contains(t, out, "confidence=0.5")

	out, err = execute(t, "check", "--config", cfgPath, "--app", "obsidian", "--title", "journal - Obsidian", "--task", "describe_screen")
	require.NoError(t, err)
	var res checkOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, gate.KnownUseTemplate, res.Gate.Decision)
	assert.Equal(t, "Journaling again?", res.Gate.Reaction)
	require.NotNil(t, res.TaskNeedAI)
	assert.True(t, *res.TaskNeedAI)

	// Unknown context on the first tick of an episode escalates.
	out, err = execute(t, "check", "--config", cfgPath, "--app", "xyzzy.exe", "--title", "zq-7 - Xyzzy")
	require.NoError(t, err)
	res = checkOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, gate.UnknownUrgent, res.Gate.Decision)
	assert.True(t, res.Gate.ShouldCallAI)

	out, err = execute(t, "kb", "list", "--config", cfgPath, "--tier", "user")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "obsidian")
	assert.NotContains(t, out, "app.vscode")

	scriptPath := filepath.Join(t.TempDir(), "day.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(cliScript), 0o600))
	_, err = execute(t, "run", "--config", cfgPath, "--script", scriptPath)
	require.NoError(t, err)

	out, err = execute(t, "episodes", "--config", cfgPath, "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "code")
	assert.Contains(t, out, "obsidian")

	out, err = execute(t, "stats", "--config", cfgPath)
	require.NoError(t, err)
	var stats struct {
		Episodes  int64            `json:"episodes"`
		Knowledge map[string]int64 `json:"knowledge"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, int64(2), stats.Episodes)
	assert.Equal(t, int64(1), stats.Knowledge["user"])

	_, err = execute(t, "kb", "forget", "--config", cfgPath, id)
	require.NoError(t, err)
	_, err = execute(t, "kb", "forget", "--config", cfgPath, id)
	assert.Error(t, err)
}

func TestCLI_Errors(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := execute(t, "kb", "add", "--config", cfgPath, "--tier", "baseline", "--title-contains", "x")
	assert.Error(t, err)

	_, err = execute(t, "kb", "add", "--config", cfgPath, "--tier", "nope", "--title-contains", "x")
	assert.Error(t, err)

	_, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "load config")
}
