package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"tools.zach/dev/modwatch/internal/config"
	"tools.zach/dev/modwatch/internal/feed"
	"tools.zach/dev/modwatch/internal/logger"
	"tools.zach/dev/modwatch/internal/metrics"
	"tools.zach/dev/modwatch/internal/status"
	"tools.zach/dev/modwatch/internal/tracker"
	"tools.zach/dev/modwatch/internal/webhook"
)

// Cycle results, used as the metrics label and in logs.
const (
	resultOK            = "ok"
	resultDegraded      = "degraded"
	resultAborted       = "aborted"
	resultPublishFailed = "publish_failed"
	resultPanic         = "panic"
)

// ///////////////////////////////////////////////
// Dependencies
// ///////////////////////////////////////////////

// deps is everything derived from one loaded config. It is replaced as a
// whole on reload and never mutated, so a cycle always sees one consistent
// configuration.
type deps struct {
	cfg       *config.Config
	loc       *time.Location
	feeds     *feed.Client
	publisher *webhook.Publisher
}

// newDeps builds clients for cfg. When prev targets the same webhook
// message its publisher is reused, keeping the rate limiter and any
// stale-id state.
func newDeps(cfg *config.Config, paths DataPaths, prev *deps) (*deps, error) {
	rt := &deps{
		cfg: cfg,
		loc: cfg.Location(),
		feeds: feed.NewClient(feed.Options{
			Timeout:   time.Duration(cfg.Sources.TimeoutSeconds) * time.Second,
			RetryMax:  cfg.Sources.Retries,
			UserAgent: cfg.Sources.UserAgent,
		}),
	}

	if prev != nil && prev.cfg.Webhook == cfg.Webhook {
		rt.publisher = prev.publisher
		return rt, nil
	}

	client, err := webhook.NewClient(cfg.Webhook.URL, webhook.Options{
		Timeout:  time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
		RetryMax: cfg.Webhook.Retries,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook client: %w", err)
	}
	rt.publisher = webhook.NewPublisher(
		client,
		&webhook.IDStore{Path: paths.MessageID()},
		cfg.Webhook.MessageID,
		webhook.Policy(cfg.Webhook.OnMissingMessage),
	)
	return rt, nil
}

// projectOptions maps the display settings onto [tracker.ProjectOptions].
func (rt *deps) projectOptions() tracker.ProjectOptions {
	d := rt.cfg.Display
	return tracker.ProjectOptions{
		Location:        rt.loc,
		Order:           tracker.Order(d.Order),
		UndercoverLabel: d.UndercoverLabel,
		OnlineMarker:    d.OnlineMarker,
		EmptyOnline:     d.EmptyOnline,
		EmptySeen:       d.EmptySeen,
	}
}

// statusDisplay maps the display settings onto [status.Display].
func (rt *deps) statusDisplay() status.Display {
	d := rt.cfg.Display
	return status.Display{
		Username:         d.ServerName,
		Title:            d.Title,
		Color:            d.Color,
		OnlineCountLabel: d.OnlineCountLabel,
		OnlineHeading:    d.OnlineHeading,
		SeenHeading:      d.SeenHeading,
		FooterPrefix:     d.FooterPrefix,
	}
}

// ///////////////////////////////////////////////
// Daemon
// ///////////////////////////////////////////////

// daemon owns the polling loop. Cycles and reloads both run on the loop
// goroutine, so cycles never overlap and the session store has one writer.
type daemon struct {
	paths    DataPaths
	metrics  *metrics.Metrics
	levelVar *slog.LevelVar
	now      func() time.Time
}

// run executes a cycle immediately and then on every tick until ctx is
// canceled. A receive on reload re-reads the config file.
func (d *daemon) run(ctx context.Context, rt *deps, reload <-chan struct{}) {
	interval := rt.cfg.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.runCycle(ctx, rt)

	for {
		select {
		case <-ctx.Done():
			slog.Info("received shutdown signal")
			return

		case <-reload:
			next, err := d.reload(rt)
			if err != nil {
				slog.Warn("config reload rejected, keeping current settings", "error", err)
				continue
			}
			rt = next
			if iv := rt.cfg.PollInterval(); iv != interval {
				interval = iv
				ticker.Reset(interval)
				slog.Info("poll interval changed", "interval", interval)
			}

		case <-ticker.C:
			d.runCycle(ctx, rt)
		}
	}
}

// reload loads the config file again and derives new dependencies from it.
// Settings read only at startup are reported when they change.
func (d *daemon) reload(cur *deps) (*deps, error) {
	cfg, err := config.Load(d.paths.Config())
	if err != nil {
		return nil, err
	}
	next, err := newDeps(cfg, d.paths, cur)
	if err != nil {
		return nil, err
	}

	if d.levelVar != nil {
		d.levelVar.Set(logger.ParseLevel(cfg.Log.Level))
	}
	if cfg.Metrics != cur.cfg.Metrics || cfg.Log.MaxSizeMB != cur.cfg.Log.MaxSizeMB || cfg.Log.Console != cur.cfg.Log.Console {
		slog.Warn("metrics and log file settings apply after a restart")
	}
	if cfg.Behavior.WatchConfig != cur.cfg.Behavior.WatchConfig {
		slog.Warn("behavior.watch_config applies after a restart")
	}
	slog.Info("config reloaded")
	return next, nil
}

// ///////////////////////////////////////////////
// Cycle
// ///////////////////////////////////////////////

// runCycle performs one poll: fetch both feeds, update the session store and
// publish the status message. A panic is logged and the next tick runs as
// usual.
func (d *daemon) runCycle(ctx context.Context, rt *deps) (result string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panic", "panic", r, "stack", string(debug.Stack()))
			result = resultPanic
		}
		d.metrics.RecordCycle(result, time.Since(start))
	}()

	cfg := rt.cfg

	var (
		mods      []string
		modsErr   error
		players   *int
		playerErr error
	)
	// Each fetch keeps its own error; one failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		mods, modsErr = rt.feeds.Moderators(ctx, cfg.Sources.ModeratorURL)
		return nil
	})
	g.Go(func() error {
		players, playerErr = rt.feeds.PlayerCount(ctx, cfg.Sources.PlayerURL)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return resultAborted
	}

	result = resultOK
	if modsErr != nil {
		slog.Warn("moderator feed failed, treating everyone as offline", "error", modsErr)
		d.metrics.RecordFetchError(metrics.FeedModerators)
		mods = nil
		result = resultDegraded
	}

	now := d.now()
	today := tracker.DateKey(now, rt.loc)
	store, err := tracker.Load(d.paths.Sessions(), today)
	if err != nil {
		slog.Warn("session store reset", "error", err)
	}

	observed := tracker.Filter(mods, cfg.IsIgnored)
	tracker.Reconcile(store, observed, now)
	if err := tracker.Save(d.paths.Sessions(), store); err != nil {
		slog.Error("failed to save session store", "error", err)
	}

	summary := tracker.Project(store, rt.projectOptions())
	d.metrics.SetModerators(len(summary.Online), len(summary.SeenToday))

	if playerErr != nil {
		slog.Error("player feed failed, skipping publish", "error", playerErr)
		d.metrics.RecordFetchError(metrics.FeedPlayers)
		return resultAborted
	}
	d.metrics.SetPlayers(players)

	msg := status.Build(status.Input{
		Summary:  summary,
		Players:  players,
		Now:      now,
		Location: rt.loc,
		Display:  rt.statusDisplay(),
	})
	res, err := rt.publisher.Publish(ctx, msg)
	if err != nil {
		slog.Error("publish failed", "error", err)
		return resultPublishFailed
	}
	d.metrics.RecordPublish(string(res.Action))

	logger.Trace(slog.Default(), "status message content", "online", summary.OnlineText, "seen_today", summary.SeenTodayText)
	slog.Info("cycle complete",
		"date", today,
		"online", len(summary.Online),
		"seen_today", len(summary.SeenToday),
		"players", playerLabel(players),
		"action", res.Action,
		"message_id", res.MessageID,
	)
	return result
}

// playerLabel renders a possibly unknown player count for logs.
func playerLabel(n *int) string {
	if n == nil {
		return "unknown"
	}
	return fmt.Sprint(*n)
}
