// Package main implements the modwatch daemon, which tracks moderator
// sessions from a presence page and keeps a Discord webhook status message
// up to date.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "tools.zach/dev/modwatch"
	"tools.zach/dev/modwatch/internal/config"
	"tools.zach/dev/modwatch/internal/logger"
	"tools.zach/dev/modwatch/internal/metrics"
	"tools.zach/dev/modwatch/internal/paths"
	"tools.zach/dev/modwatch/internal/webhook"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// A bare go build falls back to the VCS info embedded by the toolchain.
var version = "dev"

// resolveVersion returns [version] when set via ldflags, otherwise a
// "dev+<hash>" tag built from the embedded VCS revision.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random token proving ownership of the PID file, so
// [removePID] only deletes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID opens the PID file, locks it and writes "PID:TOKEN". The returned
// handle holds the lock and must stay open until [removePID].
func writePID(paths DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(paths.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock and removes the PID file if it still carries
// token.
func removePID(paths DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(paths.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(paths.PID())
	}
}

// checkStalePID reports whether another daemon holds the PID lock. A PID
// file left behind by a dead instance is removed.
func checkStalePID(paths DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(paths.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(paths.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
			return true, p
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead.
	_ = unlockFile(f)
	f.Close()
	os.Remove(paths.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns ~/.modwatch, or ./.modwatch when the home directory
// is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, sessions, and logs")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	ver := resolveVersion()
	if *showVersion {
		fmt.Println(ver)
		return
	}

	if err := run(DataPaths{Root: *dataDir}, ver, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run starts the daemon and blocks until a shutdown signal, or until the
// single cycle finishes when once is set.
func run(dataPaths DataPaths, ver string, once bool) error {
	if err := os.MkdirAll(dataPaths.Root, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if alive, pid := checkStalePID(dataPaths); alive {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	created, err := config.WriteDefault(dataPaths.Config(), rootpkg.DefaultConfigTOML)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if created {
		fmt.Fprintf(os.Stderr, "wrote default config to %s; set webhook.url and sources.moderator_url\n", dataPaths.Config())
	}

	cfg, err := config.Load(dataPaths.Config())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(logger.ParseLevel(cfg.Log.Level))
	log, logCloser := logger.NewLogger(logger.Options{
		Path:      dataPaths.Log(),
		Level:     levelVar,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Console:   cfg.Log.Console,
	})
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("modwatch starting", "version", ver, "data_dir", dataPaths.Root, "timezone", cfg.Display.Timezone)

	token := pidToken()
	pidFile, err := writePID(dataPaths, token)
	if err != nil {
		logger.Fail(slog.Default(), "failed to write PID file", "error", err)
		return err
	}
	defer removePID(dataPaths, token, pidFile)

	cur, err := newDeps(cfg, dataPaths, nil)
	if err != nil {
		logger.Fail(slog.Default(), "failed to build clients", "error", err)
		return err
	}
	if err := cur.publisher.CheckReady(); err != nil {
		if errors.Is(err, webhook.ErrNoMessageID) {
			err = fmt.Errorf("%w: set webhook.message_id or on_missing_message = \"create\"", err)
		}
		logger.Fail(slog.Default(), "webhook not ready", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	d := &daemon{
		paths:    dataPaths,
		metrics:  metrics.New(),
		levelVar: levelVar,
		now:      time.Now,
	}

	if once {
		result := d.runCycle(ctx, cur)
		slog.Info("single cycle finished", "result", result)
		if result != resultOK && result != resultDegraded {
			return fmt.Errorf("cycle %s", result)
		}
		return nil
	}

	if addr := cfg.Metrics.Listen; addr != "" {
		go func() {
			slog.Info("metrics endpoint listening", "addr", addr)
			if err := d.metrics.Serve(ctx, addr); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	var reload <-chan struct{}
	if cfg.Behavior.WatchConfig {
		watcher, err := config.NewWatcher(dataPaths.Config())
		if err != nil {
			slog.Warn("config watcher unavailable, reload disabled", "error", err)
		} else {
			defer watcher.Close()
			if watcher.Polling() {
				slog.Info("using polling mode for config watching")
			}
			reload = watcher.Events()
		}
	}

	d.run(ctx, cur, reload)
	slog.Info("modwatch stopped")
	return nil
}
