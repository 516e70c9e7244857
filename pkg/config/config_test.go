package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/acme/dashboard\n\ngo 1.24\n")

	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/acme/dashboard", r.ModulePath)
	assert.Equal(t, "dashboard", r.AppName)
	assert.Equal(t, 800.0, r.Window.Width)
	assert.Equal(t, 600.0, r.Window.Height)
	assert.Equal(t, 1.0, r.Window.Scale)
	assert.Equal(t, 60.0, r.Frame.Rate)
	assert.Equal(t, "info", r.Log.Level)
}

func TestResolveWithoutGoMod(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sketch")
	require.NoError(t, os.Mkdir(dir, 0o755))
	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, "sketch", r.AppName)
	assert.Empty(t, r.ModulePath)
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
app:
  name: Inbox
window:
  width: 1024
  height: 768
  scale: 2
style:
  sheets: [theme.css, overrides.yaml]
  hot_reload: true
  version: 1.2.0
frame:
  rate: 30
  trace_samples: 32
  trace_threshold: 8ms
log:
  level: debug
  format: json
metrics:
  addr: 127.0.0.1:9464
`)
	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, "Inbox", r.AppName)
	assert.Equal(t, 2.0, r.Window.Scale)
	assert.Equal(t, []string{filepath.Join(r.Root, "theme.css"), filepath.Join(r.Root, "overrides.yaml")}, r.Style.Sheets)
	assert.Equal(t, "v1.2.0", r.Style.Version)
	assert.Equal(t, 8*time.Millisecond, r.Frame.TraceThreshold)
	assert.Equal(t, "127.0.0.1:9464", r.Metrics.Addr)
}

func TestResolveRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"version": "style:\n  version: one\n",
		"level":   "log:\n  level: loud\n",
		"yaml":    "app: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, FileName, body)
			_, err := Resolve(dir)
			require.Error(t, err)
			var le *errors.LatticeError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, errors.KindConfig, le.Kind)
		})
	}
}

func TestEngineOptionsLoadsSheets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.css", "@version \"1.1.0\";\n.btn { width: 100 }\n")
	writeFile(t, dir, FileName, "style:\n  sheets: [base.css]\n  version: 1.0.0\nwindow:\n  width: 320\n  height: 240\n")

	r, err := Resolve(dir)
	require.NoError(t, err)
	var logs bytes.Buffer
	opts, err := r.EngineOptions(&logs)
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Sheet.Len())
	assert.Equal(t, 320.0, opts.Viewport.Width)

	opts.Logger.Info("ready")
	assert.Contains(t, logs.String(), "msg=ready")

	r.Style.Version = "v2.0.0"
	_, err = r.LoadSheet()
	require.Error(t, err)
}

func TestLoggingFormats(t *testing.T) {
	var buf bytes.Buffer
	l, err := Logging{Level: "warn", Format: "json"}.Build(&buf)
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = Logging{Format: "xml"}.Build(&buf)
	require.Error(t, err)
}
