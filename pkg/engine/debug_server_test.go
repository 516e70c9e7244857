package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/accessibility"
	"github.com/go-drift/lattice/pkg/entity"
)

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestDebugServerHealth(t *testing.T) {
	srv := NewDebugServer(New(Options{}))
	rec := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	post := httptest.NewRecorder()
	srv.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestDebugServerFrames(t *testing.T) {
	e := New(Options{})
	_, _ = e.Label(entity.Null, "x")
	for range 5 {
		_, err := e.Tick()
		require.NoError(t, err)
	}
	srv := NewDebugServer(e)

	var all FrameTimeline
	require.NoError(t, json.Unmarshal(get(t, srv, "/frames").Body.Bytes(), &all))
	assert.Len(t, all.Samples, 5)

	var limited FrameTimeline
	require.NoError(t, json.Unmarshal(get(t, srv, "/frames?limit=2").Body.Bytes(), &limited))
	require.Len(t, limited.Samples, 2)
	assert.Equal(t, uint64(5), limited.Samples[1].Tick)

	var busy FrameTimeline
	require.NoError(t, json.Unmarshal(get(t, srv, "/frames?busy=true").Body.Bytes(), &busy))
	require.Len(t, busy.Samples, 1)
	assert.Equal(t, uint64(1), busy.Samples[0].Tick)
}

func TestDebugServerTree(t *testing.T) {
	e := New(Options{})
	srv := NewDebugServer(e)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/tree").Code)

	_, _ = e.Label(entity.Null, "hello")
	_, err := e.Tick()
	require.NoError(t, err)

	rec := get(t, srv, "/tree")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap accessibility.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, accessibility.RoleText, snap.Nodes[1].Role)
	assert.Equal(t, "hello", snap.Nodes[1].Label)
}

func TestDebugServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(Options{Registerer: reg})
	_, err := e.Tick()
	require.NoError(t, err)

	rec := get(t, NewDebugServer(e), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "lattice_ticks_total 1"))
}
