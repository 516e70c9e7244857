package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// UpdateSnapshotsEnv names the environment variable that makes
// MatchesFile rewrite golden files instead of comparing.
const UpdateSnapshotsEnv = "LATTICE_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot is a stable serialization of one painted frame.
type Snapshot struct {
	Viewport [2]float64    `json:"viewport"`
	Scale    float64       `json:"scale"`
	Commands []SnapCommand `json:"commands"`
}

// SnapCommand is one paint command with entity handles replaced by the
// selector identity of the entity.
type SnapCommand struct {
	Node    string            `json:"node"`
	Bounds  [4]float64        `json:"bounds"`
	Clip    [4]float64        `json:"clip"`
	Z       float64           `json:"z,omitempty"`
	Content string            `json:"content,omitempty"`
	Props   map[string]string `json:"props,omitempty"`
}

// snapshotProps are the paint properties recorded when they differ from
// their defaults.
var snapshotProps = []*style.Property{
	style.BackgroundColor,
	style.ForegroundColor,
	style.BorderColor,
	style.BorderWidth,
	style.Opacity,
}

// CaptureSnapshot serializes the last painted frame. It fails the test if
// nothing has been painted.
func (t *Tester) CaptureSnapshot() *Snapshot {
	t.t.Helper()
	frame := t.LastFrame()
	if frame == nil {
		t.t.Fatalf("CaptureSnapshot: no frame painted yet")
	}
	return SnapshotOf(t.engine, frame)
}

// SnapshotOf serializes frame, naming entities through e's style store.
func SnapshotOf(e *engine.Engine, frame *engine.PaintFrame) *Snapshot {
	snap := &Snapshot{
		Viewport: [2]float64{round2(frame.Viewport.Width), round2(frame.Viewport.Height)},
		Scale:    round2(frame.Scale),
		Commands: make([]SnapCommand, 0, len(frame.Commands)),
	}
	for _, c := range frame.Commands {
		sc := SnapCommand{
			Node:    nodeName(e, c),
			Bounds:  rect4(c.Bounds),
			Clip:    rect4(c.Clip),
			Z:       c.Z,
			Content: c.Content,
		}
		for _, p := range snapshotProps {
			v := c.Style.Get(p)
			if v == nil || style.Equal(v, p.Default) {
				continue
			}
			if sc.Props == nil {
				sc.Props = make(map[string]string)
			}
			sc.Props[p.Name] = v.String()
		}
		snap.Commands = append(snap.Commands, sc)
	}
	return snap
}

// nodeName renders type#id.class1.class2 for the command's entity.
func nodeName(e *engine.Engine, c engine.PaintCommand) string {
	name, err := e.Styles().Describe(c.Entity)
	if err != nil {
		return c.Entity.String()
	}
	return name
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When the update variable
// is set to 1 the file is rewritten instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to path, creating directories as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a line diff from other to s, or "" when they are equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(s)
	b, _ := marshalSnapshot(other)
	if bytes.Equal(a, b) {
		return ""
	}
	return lineDiff(string(b), string(a))
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lineDiff lists differing lines position by position.
func lineDiff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var buf strings.Builder
	buf.WriteString("--- expected\n+++ actual\n")
	for i := range max(len(expectedLines), len(actualLines)) {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e == a {
			continue
		}
		if i < len(expectedLines) {
			fmt.Fprintf(&buf, "-%s\n", e)
		}
		if i < len(actualLines) {
			fmt.Fprintf(&buf, "+%s\n", a)
		}
	}
	return buf.String()
}

func rect4(r graphics.Rect) [4]float64 {
	return [4]float64{round2(r.Left), round2(r.Top), round2(r.Right), round2(r.Bottom)}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
