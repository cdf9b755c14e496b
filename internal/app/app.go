// Package app is the command surface consumed by UI collaborators (tray,
// settings pane, overlay): thin orchestration over the core components,
// with progress pushed through a pluggable event emitter.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BharatBheesetti/scribe/internal/autostart"
	"github.com/BharatBheesetti/scribe/internal/config"
	"github.com/BharatBheesetti/scribe/internal/history"
	"github.com/BharatBheesetti/scribe/internal/hotkey"
	"github.com/BharatBheesetti/scribe/internal/models"
)

// appName keys the OS login-item registration.
const appName = "Scribe"

// Emitter pushes events to the UI layer. Implementations must not block.
type Emitter interface {
	Emit(event string, payload any)
}

// ModelEngine is the slice of the inference engine the command surface
// needs.
type ModelEngine interface {
	Load(name, path string) error
	LoadedModel() string
}

// DownloadProgress is the payload of model-download-progress events.
type DownloadProgress struct {
	Name         string  `json:"name"`
	Percent      float64 `json:"percent"`
	DownloadedMB float64 `json:"downloaded_mb"`
	TotalMB      float64 `json:"total_mb"`
}

// AppInfo is the model catalog projection returned to the UI.
type AppInfo struct {
	Models      []models.Descriptor `json:"models"`
	ActiveModel string              `json:"active_model"`
	Loaded      bool                `json:"loaded"`
}

// App wires the commands to the core.
type App struct {
	settings *config.Store
	registry *hotkey.Registry
	catalog  *models.Catalog
	engine   ModelEngine
	history  *history.Store
	emitter  Emitter

	mu          sync.Mutex
	downloading map[string]bool

	// Wired by SetSessionControls once the state machine is running.
	escape func()
	level  func() float32

	// setAutoStart is swapped in tests.
	setAutoStart func(name string, enabled bool) error
}

// New creates the command surface.
func New(settings *config.Store, registry *hotkey.Registry, catalog *models.Catalog, eng ModelEngine, hist *history.Store, emitter Emitter) *App {
	return &App{
		settings:     settings,
		registry:     registry,
		catalog:      catalog,
		engine:       eng,
		history:      hist,
		emitter:      emitter,
		downloading:  map[string]bool{},
		setAutoStart: autostart.Set,
	}
}

func (a *App) emit(event string, payload any) {
	if a.emitter != nil {
		a.emitter.Emit(event, payload)
	}
}

// SetSessionControls wires the overlay-facing session hooks: escape
// delivers a cancellation to the state machine, level reads the RMS
// atomic. Called once at startup.
func (a *App) SetSessionControls(escape func(), level func() float32) {
	a.escape = escape
	a.level = level
}

// CancelSession delivers an Escape to the state machine. The overlay calls
// this while visible.
func (a *App) CancelSession() {
	if a.escape != nil {
		a.escape()
	}
}

// GetLevel returns the current RMS level in [0, 1] for the VU meter. The
// overlay polls this at up to 10 Hz.
func (a *App) GetLevel() float32 {
	if a.level == nil {
		return 0
	}
	return a.level()
}

// GetSettings returns the current settings snapshot.
func (a *App) GetSettings() config.Settings {
	return a.settings.Snapshot()
}

// SaveSettings persists new settings and applies the side effects of any
// changed key: hotkey rebind, model switch, login-item registration.
func (a *App) SaveSettings(s config.Settings) error {
	prev := a.settings.Snapshot()

	if s.Hotkey != prev.Hotkey {
		normalized, err := a.registry.Rebind(prev.Hotkey, s.Hotkey)
		if err != nil {
			return err
		}
		s.Hotkey = normalized
	}

	if err := a.settings.Save(s); err != nil {
		return err
	}

	if s.Model != prev.Model {
		if err := a.SwitchModel(s.Model); err != nil {
			return err
		}
	}
	if s.AutoStart != prev.AutoStart {
		if err := a.setAutoStart(appName, s.AutoStart); err != nil {
			return err
		}
	}
	return nil
}

// GetCurrentHotkey returns the active binding in canonical form.
func (a *App) GetCurrentHotkey() string {
	return a.settings.Snapshot().Hotkey
}

// SetHotkey rebinds the primary hotkey and persists the normalized string,
// which is returned. The old binding stays active on failure.
func (a *App) SetHotkey(binding string) (string, error) {
	cur := a.settings.Snapshot()
	normalized, err := a.registry.Rebind(cur.Hotkey, binding)
	if err != nil {
		return "", err
	}
	cur.Hotkey = normalized
	if err := a.settings.Save(cur); err != nil {
		return normalized, err
	}
	return normalized, nil
}

// PauseHotkey releases the binding so the settings UI's capture widget
// sees raw key events.
func (a *App) PauseHotkey() {
	a.registry.Pause()
}

// ResumeHotkey re-arms the binding after capture.
func (a *App) ResumeHotkey() error {
	return a.registry.Resume()
}

// GetAppInfo returns the model catalog with presence and load state.
func (a *App) GetAppInfo() AppInfo {
	a.catalog.Refresh()
	active := a.settings.Snapshot().Model
	return AppInfo{
		Models:      a.catalog.List(),
		ActiveModel: active,
		Loaded:      a.engine.LoadedModel() == active,
	}
}

// DownloadModel starts a background download, streaming
// model-download-progress events and a final model-ready. Returns
// immediately; a second call for the same model while one is running is an
// error.
func (a *App) DownloadModel(ctx context.Context, name string) error {
	if _, err := a.catalog.Get(name); err != nil {
		return err
	}

	a.mu.Lock()
	if a.downloading[name] {
		a.mu.Unlock()
		return fmt.Errorf("app: download of %q already in progress", name)
	}
	a.downloading[name] = true
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			delete(a.downloading, name)
			a.mu.Unlock()
		}()

		err := a.catalog.Download(ctx, name, func(p models.Progress) {
			a.emit("model-download-progress", DownloadProgress{
				Name:         name,
				Percent:      p.Percent,
				DownloadedMB: p.DownloadedMB,
				TotalMB:      p.TotalMB,
			})
		})
		if err != nil {
			slog.Error("model download failed", "model", name, "error", err)
			a.emit("model-download-error", map[string]string{"name": name, "error": err.Error()})
			return
		}
		a.emit("model-ready", map[string]string{"name": name})
	}()
	return nil
}

// SwitchModel loads a downloaded model into the engine and makes it the
// active one. An in-flight transcription is cancelled by the engine swap.
func (a *App) SwitchModel(name string) error {
	d, err := a.catalog.Get(name)
	if err != nil {
		return err
	}
	if !d.Present {
		return fmt.Errorf("app: model %q is not downloaded", name)
	}
	if err := a.engine.Load(name, d.Path); err != nil {
		return err
	}
	a.catalog.SetLoaded(name)

	s := a.settings.Snapshot()
	if s.Model != name {
		s.Model = name
		if err := a.settings.Save(s); err != nil {
			return err
		}
	}
	a.emit("model-ready", map[string]string{"name": name})
	return nil
}

// GetHistory returns the history snapshot, newest first.
func (a *App) GetHistory() []history.Entry {
	return a.history.List()
}

// ClearHistory wipes the history log.
func (a *App) ClearHistory() error {
	return a.history.Clear()
}

// SetAutoStart registers or removes the login item and persists the flag.
func (a *App) SetAutoStart(enabled bool) error {
	if err := a.setAutoStart(appName, enabled); err != nil {
		return err
	}
	s := a.settings.Snapshot()
	s.AutoStart = enabled
	return a.settings.Save(s)
}
