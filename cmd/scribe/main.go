// Command scribe is a local push-to-toggle voice-to-text utility: press the
// global hotkey, speak, press again, and the transcript lands at the
// foreground caret. All processing stays on the machine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/BharatBheesetti/scribe/internal/app"
	"github.com/BharatBheesetti/scribe/internal/audio"
	"github.com/BharatBheesetti/scribe/internal/autostart"
	"github.com/BharatBheesetti/scribe/internal/config"
	"github.com/BharatBheesetti/scribe/internal/engine"
	"github.com/BharatBheesetti/scribe/internal/history"
	"github.com/BharatBheesetti/scribe/internal/hotkey"
	"github.com/BharatBheesetti/scribe/internal/inject"
	"github.com/BharatBheesetti/scribe/internal/mic"
	"github.com/BharatBheesetti/scribe/internal/models"
	"github.com/BharatBheesetti/scribe/internal/postproc"
	"github.com/BharatBheesetti/scribe/internal/session"
	"github.com/BharatBheesetti/scribe/internal/singleinstance"
	"github.com/BharatBheesetti/scribe/internal/tone"
)

// version is set at build time via -ldflags.
var version = "dev"

const instanceMutexName = "Scribe-single-instance"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("scribe %s\n", version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	release, err := singleinstance.Acquire(instanceMutexName)
	if err != nil {
		if errors.Is(err, singleinstance.ErrAlreadyRunning) {
			return errors.New("already running")
		}
		return err
	}
	defer release()

	// Settings and logging first; everything else reports through slog.
	settings := config.NewStore("")
	if err := settings.Load(); err != nil {
		return err
	}
	snap := settings.Snapshot()

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(snap.LogLevel),
	})
	slog.SetDefault(slog.New(handler))

	printBanner(snap)

	// Model catalog and engine. A missing model is not fatal: the UI can
	// download one; dictation reports the error until then.
	catalog, err := models.NewCatalog(config.DefaultModelsDir())
	if err != nil {
		return err
	}
	eng := engine.NewWhisper()
	defer eng.Close()

	if d, err := catalog.Get(snap.Model); err != nil {
		slog.Warn("active model unknown", "model", snap.Model, "error", err)
	} else if !d.Present {
		slog.Warn("active model not downloaded yet", "model", snap.Model, "path", d.Path)
	} else if err := eng.Load(d.Name, d.Path); err != nil {
		// Load failure at startup is fatal per policy: a half-usable
		// dictation tool is worse than a clear exit.
		return err
	} else {
		catalog.SetLoaded(d.Name)
		slog.Info("model loaded", "model", d.Name)
	}

	// Audio capture; ring allocation failure at startup is fatal.
	capture, err := audio.NewCapture()
	if err != nil {
		return err
	}
	defer capture.Close()

	// Cue player; a machine without an output device just loses the cues.
	var signaler session.Signaler
	if player, err := tone.NewPlayer(); err != nil {
		slog.Warn("sound cues disabled", "error", err)
	} else {
		signaler = player
	}

	// History log.
	hist := history.NewStore("")
	if err := hist.Load(); err != nil {
		slog.Warn("history unavailable", "error", err)
	}

	// Hotkey registry with the primary binding armed. Arming happens
	// right here, before any onboarding UI: first-run behavior matches
	// every later run.
	registry := hotkey.NewRegistry(hotkey.NewSystemBackend())
	defer registry.Close()
	if _, err := registry.Register(snap.Hotkey); err != nil {
		return fmt.Errorf("arming hotkey %s: %w", snap.Hotkey, err)
	}
	slog.Info("hotkey armed", "binding", snap.Hotkey)

	// Login item kept in sync with the persisted flag.
	if err := autostart.Set("Scribe", snap.AutoStart); err != nil {
		slog.Warn("login item not updated", "error", err)
	}

	machine := session.NewMachine(session.Deps{
		Recorder:    capture,
		Transcriber: eng,
		Conditioner: mic.New(mic.NewSystemEndpoint()),
		Injector:    inject.New(),
		Signaler:    signaler,
		Settings:    settings,
		History:     hist,
		PostProcess: postproc.Process,
		Notify:      notifyLog,
	})

	// Command surface for the tray/settings/overlay collaborators.
	commands := app.New(settings, registry, catalog, eng, hist, slogEmitter{})
	commands.SetSessionControls(machine.Escape, capture.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("ready", "hotkey", snap.Hotkey)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return machine.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-registry.Events():
				machine.Press()
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("goodbye")
	return nil
}

// notifyLog is the headless notification sink; the overlay bridge replaces
// it in the packaged build.
func notifyLog(n session.Notification) {
	switch {
	case n.Err != nil:
		slog.Error("session", "state", n.State.String(), "error", n.Err)
	case n.Transcript != nil:
		slog.Info("session complete",
			"text", n.Transcript.Text,
			"language", n.Transcript.Language,
			"duration_s", n.Transcript.DurationSeconds,
			"method", n.Method)
	default:
		slog.Debug("session", "state", n.State.String())
	}
}

// slogEmitter forwards UI events into the log for headless runs.
type slogEmitter struct{}

func (slogEmitter) Emit(event string, payload any) {
	slog.Debug("event", "name", event, "payload", payload)
}

// printBanner displays the startup configuration summary.
func printBanner(s config.Settings) {
	fmt.Println("=== scribe ===")
	fmt.Printf("  Version: %s\n", version)
	fmt.Printf("  Model:   %s\n", s.Model)
	fmt.Printf("  Hotkey:  %s\n", s.Hotkey)
	fmt.Printf("  Output:  %s\n", s.OutputMode)
	fmt.Printf("  Lang:    %s\n", s.Language)
	fmt.Printf("  Log:     %s\n", s.LogLevel)
	fmt.Println("==============")
}
