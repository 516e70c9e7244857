package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

const inbox = `
name: inbox
views:
  - type: column
    id: main
    classes: [panel, dark]
    style:
      width: 300
      height: 200
    children:
      - type: label
        id: title
        text: Inbox
        style:
          height: 20
      - type: button
        id: send
        text: Send
        focusable: true
        style:
          height: 30
      - type: view
        hidden: true
`

func TestParse(t *testing.T) {
	s, err := Parse("inbox.yaml", []byte(inbox))
	require.NoError(t, err)
	assert.Equal(t, "inbox", s.Name)
	require.Len(t, s.Views, 1)
	main := s.Views[0]
	assert.Equal(t, []string{"panel", "dark"}, main.Classes)
	require.Len(t, main.Children, 3)
	assert.Equal(t, "Send", main.Children[1].Text)
	assert.Equal(t, 16, main.Children[1].line)
}

func TestParseErrors(t *testing.T) {
	for name, body := range map[string]string{
		"duplicate id": "views:\n  - type: a\n    id: x\n  - type: b\n    id: x\n",
		"unknown key":  "name: x\nwidgets: []\n",
		"syntax":       "views: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(body))
			require.Error(t, err)
			var le *errors.LatticeError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, errors.KindConfig, le.Kind)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestBuild(t *testing.T) {
	s, err := Parse("inbox.yaml", []byte(inbox))
	require.NoError(t, err)
	e := engine.New(engine.Options{Viewport: graphics.Size{Width: 400, Height: 400}})

	built, err := s.Build(e, entity.Null)
	require.NoError(t, err)
	require.Len(t, built.Roots, 1)
	main := built.MustLookup("main")
	assert.Equal(t, main, built.Roots[0])

	styles := e.Styles()
	name, err := styles.Describe(main)
	require.NoError(t, err)
	assert.Equal(t, "column#main.panel.dark", name)
	dark, err := styles.HasClass(main, "dark")
	require.NoError(t, err)
	assert.True(t, dark)

	send := built.MustLookup("send")
	assert.True(t, e.Entities().HasFlag(send, entity.Focusable))
	text, ok, err := styles.Inline(send, style.Content)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, style.Text("Send"), text)

	children, err := e.Entities().Children(main)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.True(t, e.Entities().HasFlag(children[2], entity.Hidden))

	_, err = e.Tick()
	require.NoError(t, err)
	bounds, err := e.Layout().Rect(main)
	require.NoError(t, err)
	assert.Equal(t, 300.0, bounds.Width())

	_, ok = built.Lookup("missing")
	assert.False(t, ok)
	assert.Panics(t, func() { built.MustLookup("missing") })
}

func TestBuildRollsBackOnError(t *testing.T) {
	s, err := Parse("bad.yaml", []byte("views:\n  - type: a\n    id: ok\n  - type: b\n    style:\n      width: wide\n"))
	require.NoError(t, err)
	e := engine.New(engine.Options{})
	before := e.Entities().Len()

	_, err = s.Build(e, entity.Null)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml:4")
	assert.Equal(t, before, e.Entities().Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(inbox), 0o644))
	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "inbox", s.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
