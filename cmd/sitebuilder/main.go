package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output   string `short:"o" help:"Override the configured output directory"`
		Clean    bool   `help:"Remove the output directory before building"`
		FailFast bool   `help:"Stop scheduling new artifacts after the first failure"`
		Jobs     int    `short:"j" help:"Number of concurrent build workers (0 = number of CPUs)"`
	} `cmd:"" help:"Build the site incrementally"`

	Scan struct{} `cmd:"" help:"List discovered source documents without building"`

	Clean struct{} `cmd:"" help:"Remove the output directory"`

	Publish struct{} `cmd:"" help:"Build, then commit the output tree onto the publish branch"`

	Watch struct{} `cmd:"" help:"Build continuously, rebuilding on source changes"`

	History struct {
		Limit int `short:"n" help:"Number of builds to show" default:"20"`
	} `cmd:"" help:"Show recent builds"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "build":
		cfg := loadConfig()
		applyBuildFlags(cfg)
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "scan":
		if err := runScan(loadConfig()); err != nil {
			slog.Error("Scan failed", "error", err)
			os.Exit(1)
		}
	case "clean":
		if err := runClean(loadConfig()); err != nil {
			slog.Error("Clean failed", "error", err)
			os.Exit(1)
		}
	case "publish":
		if err := runPublish(loadConfig()); err != nil {
			slog.Error("Publish failed", "error", err)
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(loadConfig()); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(loadConfig(), CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

func applyBuildFlags(cfg *config.Config) {
	if CLI.Build.Output != "" {
		cfg.Output.Directory = CLI.Build.Output
	}
	if CLI.Build.Clean {
		cfg.Output.Clean = true
	}
	if CLI.Build.FailFast {
		cfg.Build.FailurePolicy = config.PolicyFailFast
	}
	if CLI.Build.Jobs > 0 {
		cfg.Build.Workers = CLI.Build.Jobs
	}
}

// newService assembles a build service with the optional extras the
// configuration enables: history store and NATS notifications.
func newService(cfg *config.Config) (*site.Service, func(), error) {
	svc, err := site.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = store.Close() })
		svc.WithHistory(store)
	}
	if cfg.Watch.NATSURL != "" {
		notifier, err := events.NewNATSNotifier(cfg.Watch.NATSURL, cfg.Watch.NATSSubject)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = notifier.Close() })
		svc.WithNotifier(notifier)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return svc, cleanup, nil
}

func runBuild(cfg *config.Config) error {
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.Build(signalContext())
	if err != nil {
		return err
	}
	slog.Info("Build complete",
		"build_id", report.BuildID,
		"built", len(report.Built),
		"skipped", len(report.Skipped),
		"duration", report.Duration.Round(time.Millisecond))
	if !report.Success() {
		return fmt.Errorf("build finished with outcome %s", report.Outcome)
	}
	return nil
}

func runScan(cfg *config.Config) error {
	svc, err := site.New(cfg)
	if err != nil {
		return err
	}
	docs, err := svc.Scan()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Println(doc.RelPath)
	}
	slog.Info("Scan complete", "documents", len(docs))
	return nil
}

func runClean(cfg *config.Config) error {
	svc, err := site.New(cfg)
	if err != nil {
		return err
	}
	return svc.Clean()
}

// runPublish builds first so the committed tree is never stale.
func runPublish(cfg *config.Config) error {
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := signalContext()
	report, err := svc.Build(ctx)
	if err != nil {
		return err
	}
	if !report.Success() {
		return fmt.Errorf("refusing to publish a %s build", report.Outcome)
	}
	return svc.Publish(ctx, report.BuildID)
}

func runWatch(cfg *config.Config) error {
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Watch.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		svc.WithRecorder(metrics.NewPrometheusRecorder(registry))
		go serveMetrics(cfg.Watch.MetricsAddr, registry)
	}

	return watch.New(cfg, svc).Run(signalContext())
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.History.Path == "" {
		return fmt.Errorf("no history database configured (set history.path)")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-8s  built=%d skipped=%d failed=%d  %s\n",
			e.StartedAt.Format(time.RFC3339),
			e.Outcome,
			e.Built, e.Skipped, e.Failed,
			e.BuildID)
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(registry))
	slog.Info("Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Metrics server failed", "error", err)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM. The signal
// registration lives for the rest of the process.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
