// Package config loads the optional lattice.yaml next to an application's
// go.mod and resolves it into engine options.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// FileName is the configuration file looked up in the project root.
const FileName = "lattice.yaml"

// Config represents lattice.yaml.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Window  WindowConfig  `yaml:"window"`
	Style   StyleConfig   `yaml:"style"`
	Frame   FrameConfig   `yaml:"frame"`
	Log     Logging       `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
}

// WindowConfig sets the initial logical window.
type WindowConfig struct {
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
	Scale  float64 `yaml:"scale,omitempty"`
}

// StyleConfig lists the sheets to load, in cascade order.
type StyleConfig struct {
	Sheets    []string `yaml:"sheets,omitempty"`
	HotReload bool     `yaml:"hot_reload,omitempty"`
	// Version is the minimum sheet version accepted, as semver.
	Version string `yaml:"version,omitempty"`
}

// FrameConfig controls scheduler pacing and tracing.
type FrameConfig struct {
	Rate           float64       `yaml:"rate,omitempty"`
	TraceSamples   int           `yaml:"trace_samples,omitempty"`
	TraceThreshold time.Duration `yaml:"trace_threshold,omitempty"`
}

// MetricsConfig enables the debug HTTP server.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Resolved contains configuration with defaults filled in. Sheet paths are
// absolute.
type Resolved struct {
	Root       string
	ModulePath string
	AppName    string
	Window     WindowConfig
	Style      StyleConfig
	Frame      FrameConfig
	Log        Logging
	Metrics    MetricsConfig
}

// LoadOptional reads lattice.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, configError("config.LoadOptional", fmt.Errorf("failed to read %s: %w", FileName, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, configError("config.LoadOptional", fmt.Errorf("failed to parse %s: %w", FileName, err))
	}
	return &cfg, nil
}

// Resolve loads lattice.yaml (if present) and resolves defaults. A missing
// go.mod is allowed; the app name then comes from the directory.
func Resolve(dir string) (*Resolved, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, configError("config.Resolve", err)
	}
	cfg, err := LoadOptional(abs)
	if err != nil {
		return nil, err
	}

	modPath, _ := modulePath(abs)
	r := &Resolved{
		Root:       abs,
		ModulePath: modPath,
		AppName:    strings.TrimSpace(cfg.App.Name),
		Window:     cfg.Window,
		Style:      cfg.Style,
		Frame:      cfg.Frame,
		Log:        cfg.Log,
		Metrics:    cfg.Metrics,
	}
	if r.AppName == "" {
		r.AppName = defaultAppName(modPath, abs)
	}
	if r.Window.Width <= 0 {
		r.Window.Width = engine.DefaultViewport.Width
	}
	if r.Window.Height <= 0 {
		r.Window.Height = engine.DefaultViewport.Height
	}
	if r.Window.Scale <= 0 {
		r.Window.Scale = 1
	}
	if r.Frame.Rate <= 0 {
		r.Frame.Rate = 60
	}
	if r.Log.Level == "" {
		r.Log.Level = "info"
	}
	if r.Log.Format == "" {
		r.Log.Format = "text"
	}
	if v := r.Style.Version; v != "" {
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			return nil, configError("config.Resolve", fmt.Errorf("style.version %q is not a semantic version", r.Style.Version))
		}
		r.Style.Version = v
	}
	for i, p := range r.Style.Sheets {
		if !filepath.IsAbs(p) {
			r.Style.Sheets[i] = filepath.Join(abs, p)
		}
	}
	if _, err := r.Log.level(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadSheet loads the configured sheets. With no sheets configured it
// returns an empty sheet. A sheet older than style.version is rejected.
func (r *Resolved) LoadSheet() (*style.Sheet, error) {
	if len(r.Style.Sheets) == 0 {
		return style.EmptySheet(), nil
	}
	sheet, err := style.LoadFiles(r.AppName, r.Style.Sheets...)
	if err != nil {
		return nil, err
	}
	if want := r.Style.Version; want != "" {
		got := sheet.Version
		if got == "" || semver.Compare(got, want) < 0 {
			return nil, configError("config.LoadSheet", fmt.Errorf("sheet version %q is older than required %s", got, want))
		}
	}
	return sheet, nil
}

// EngineOptions turns the configuration into engine options. Logs go to w.
func (r *Resolved) EngineOptions(w io.Writer) (engine.Options, error) {
	sheet, err := r.LoadSheet()
	if err != nil {
		return engine.Options{}, err
	}
	logger, err := r.Log.Build(w)
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Sheet:          sheet,
		SheetPaths:     r.Style.Sheets,
		HotReload:      r.Style.HotReload,
		Viewport:       graphics.Size{Width: r.Window.Width, Height: r.Window.Height},
		Scale:          r.Window.Scale,
		FrameRate:      r.Frame.Rate,
		TraceSamples:   r.Frame.TraceSamples,
		TraceThreshold: r.Frame.TraceThreshold,
		Logger:         logger,
		DebugAddr:      r.Metrics.Addr,
	}, nil
}

// FindProjectRoot walks up from the current directory to find go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", err
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modName, _, ok := module.SplitPathVersion(modulePath); ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "lattice_app"
	}
	return base
}

func configError(op string, err error) *errors.LatticeError {
	return &errors.LatticeError{Op: op, Kind: errors.KindConfig, Err: err}
}

// Logging selects the slog handler.
type Logging struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level,omitempty"`
	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

func (l Logging) level() (slog.Level, error) {
	var lv slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, configError("config.Logging", fmt.Errorf("log.level: %w", err))
	}
	return lv, nil
}

// Build returns a logger writing to w.
func (l Logging) Build(w io.Writer) (*slog.Logger, error) {
	lv, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, configError("config.Logging", fmt.Errorf("log.format %q: want text or json", l.Format))
	}
}
