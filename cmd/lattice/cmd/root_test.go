package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/accessibility"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"go.mod":       "module example.com/tools/notes\n\ngo 1.24\n",
		"lattice.yaml": "style:\n  sheets: [app.css]\nwindow:\n  width: 400\n  height: 300\n",
		"app.css": `@version "1.0.0";
.panel { width: 200; height: 100 }
button { height: 24; frobnicate: yes }
`,
		"main.yaml": `
views:
  - type: column
    classes: [panel]
    children:
      - type: button
        id: save
        text: Save
        focusable: true
`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"check", "inspect", "serve", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "version", "--format", "xml")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lattice version "+Version)
}

func TestCheck(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "check", "-C", dir, filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "app:     notes")
	assert.Contains(t, out, "(2 rules)")
	assert.Contains(t, out, "version: v1.0.0")
	assert.Contains(t, out, "frobnicate")
	assert.Contains(t, out, "ok\n")

	_, err = execute(t, "check", "-C", dir, "--strict")
	assert.ErrorContains(t, err, "1 warning(s)")

	out, err = execute(t, "check", "-C", dir, "--format", "json")
	require.NoError(t, err)
	var res CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "example.com/tools/notes", res.Module)
	assert.Equal(t, 2, res.Rules)
}

func TestCheckRejectsBadScene(t *testing.T) {
	dir := project(t)
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("views:\n  - id: a\n  - id: a\n"), 0o644))
	_, err := execute(t, "check", "-C", dir, bad)
	assert.ErrorContains(t, err, "duplicate id")
}

func TestInspectTree(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "inspect", "-C", dir, filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "window (0,0 400x300)")
	assert.Contains(t, out, "  group (0,0 200x100)")
	assert.Contains(t, out, `    button "Save" (0,0 200x24)`)

	out, err = execute(t, "inspect", "-C", dir, "--format", "json", "--scale", "2", filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	var snap accessibility.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, 800.0, snap.Nodes[0].Bounds.Right)
}

func TestInspectFrame(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "inspect", "-C", dir, "--frame", "--width", "640", filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "tick 1, scale 1, 3 commands")
	assert.Contains(t, out, "column.panel")
	assert.Contains(t, out, "button#save")
	assert.Contains(t, out, `"Save"`)
}
