package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

const cliHeader = `
struct __cppobj Widget
{
  Widget_vtbl *__vftable /*VFT*/;
  Missing *link;
  int id;
};

struct /*VFT*/ Widget_vtbl
{
  void (__thiscall *Release)(Widget *this);
};

//----- (00401000) --------------------------------------------------------
int __thiscall Widget::GetId(Widget *this, int unused)
{
  return this->id;
}
`

func resetFlags() {
	parseWorkers, parseDryRun, parseShowDiags, parseTopMissing = 0, false, 20, 10
	genOutput, genNamespace, genWorkers, genRules = "", "", 0, ""
	genNoComments, genSourceComments = false, false
	unresolvedLimit, commentFile, configForce = 25, "", false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "storage:\n" +
		"  type: sqlite\n" +
		"  sqlite_path: " + filepath.Join(dir, "acbind.db") + "\n" +
		"generation:\n" +
		"  root_namespace: AC\n" +
		"  output_dir: " + filepath.Join(dir, "out") + "\n" +
		"  workers: 2\n" +
		"comments:\n" +
		"  enabled: true\n" +
		"  cache_path: " + filepath.Join(dir, "comments.cache") + "\n" +
		"logging:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	header := filepath.Join(dir, "widget.h")
	require.NoError(t, os.WriteFile(header, []byte(cliHeader), 0644))

	out, err := execute(t, "parse", header, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Parsed 1 files")
	assert.Contains(t, out, "Missing")
	assert.Contains(t, out, "Stored graph")

	_, err = execute(t, "comment", "set", "struct", "Widget", "A widget.", "--config", cfgPath)
	require.NoError(t, err)
	out, err = execute(t, "comment", "get", "struct", "Widget", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "A widget.\n", out)

	out, err = execute(t, "generate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated")

	widget, err := os.ReadFile(filepath.Join(dir, "out", "Widget.cs"))
	require.NoError(t, err)
	assert.Contains(t, string(widget), "A widget.")
	assert.Contains(t, string(widget), "public int GetId(int unused)")

	out, err = execute(t, "layout", "Widget", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "size 12, align 4")
	assert.Contains(t, out, "link")

	out, err = execute(t, "unresolved", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Missing")
	assert.Contains(t, out, "1 files")
}

func TestCommentSetAfterGenerate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	header := filepath.Join(dir, "widget.h")
	require.NoError(t, os.WriteFile(header, []byte(cliHeader), 0644))
	widgetFile := filepath.Join(dir, "out", "Widget.cs")

	_, err := execute(t, "parse", header, "--config", cfgPath)
	require.NoError(t, err)
	_, err = execute(t, "generate", "--config", cfgPath)
	require.NoError(t, err)

	for _, text := range []string{"First text.", "Second text."} {
		_, err = execute(t, "comment", "set", "struct", "Widget", text, "--config", cfgPath)
		require.NoError(t, err)
		_, err = execute(t, "generate", "--config", cfgPath)
		require.NoError(t, err)

		widget, err := os.ReadFile(widgetFile)
		require.NoError(t, err)
		assert.Contains(t, string(widget), text)
	}
}

func TestGenerateFromInputsWithoutStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	header := filepath.Join(dir, "widget.h")
	require.NoError(t, os.WriteFile(header, []byte(cliHeader), 0644))
	outDir := filepath.Join(dir, "direct")

	_, err := execute(t, "generate", header, "--no-comments", "--output", outDir, "--namespace", "Game", "--config", cfgPath)
	require.NoError(t, err)

	widget, err := os.ReadFile(filepath.Join(outDir, "Widget.cs"))
	require.NoError(t, err)
	assert.Contains(t, string(widget), "namespace Game")

	_, err = os.Stat(filepath.Join(dir, "acbind.db"))
	assert.True(t, os.IsNotExist(err), "store is not opened without comments")
}

func TestParseDryRunAndErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	header := filepath.Join(dir, "widget.h")
	require.NoError(t, os.WriteFile(header, []byte(cliHeader+"\nstruct Broken {\n"), 0644))

	out, err := execute(t, "parse", header, "--dry-run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Diagnostics: 1")
	assert.NotContains(t, out, "Stored graph")

	_, err = execute(t, "generate", "--config", cfgPath)
	assert.Error(t, err, "nothing stored yet")

	_, err = execute(t, "comment", "set", "class", "Widget", "x", "--config", cfgPath)
	assert.Error(t, err)

	_, err = execute(t, "layout", "Nope", "--config", cfgPath)
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	out, err := execute(t, "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "root_namespace: AC")

	target := filepath.Join(dir, "written", "config.yaml")
	_, err = execute(t, "config", "init", target, "--config", cfgPath)
	require.NoError(t, err)
	_, err = execute(t, "config", "init", target, "--config", cfgPath)
	assert.Error(t, err, "refuses to overwrite")

	out, err = execute(t, "config", "validate", "--config", target)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "Configuration is valid\n"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(fmt.Errorf("open: %w", errors.ConfigErrorf("storage.type is required"))))
	assert.Equal(t, 1, exitCode(errors.FileSystemErrorf(io.EOF, "failed to read a.h")))
	assert.Equal(t, 1, exitCode(fmt.Errorf("comment text or --file is required")))

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("storage: [unclosed"), 0644))
	_, err := execute(t, "config", "show", "--config", bad)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}
