// Package watch rebuilds the site whenever the source tree changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Watcher runs builds in response to filesystem changes. Bursts of events are
// coalesced with a debounce window; an optional cron schedule forces periodic
// rebuilds even when nothing changed (external renderers may depend on state
// outside the source tree).
type Watcher struct {
	cfg    *config.Config
	svc    *site.Service
	logger *slog.Logger
}

// New creates a watcher driving the given build service.
func New(cfg *config.Config, svc *site.Service) *Watcher {
	return &Watcher{cfg: cfg, svc: svc, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Run builds once, then blocks rebuilding on changes until ctx is canceled.
// Build failures are logged and watching continues; only setup errors are
// returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityFatal, "create filesystem watcher")
	}
	defer fw.Close()

	if err := addRecursive(fw, w.cfg.Source.Root); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityFatal, "watch source tree")
	}

	trigger := make(chan struct{}, 1)
	if w.cfg.Watch.Schedule != "" {
		scheduler, err := w.startSchedule(trigger)
		if err != nil {
			return err
		}
		defer func() { _ = scheduler.Shutdown() }()
	}

	w.rebuild(ctx)

	debounce := w.cfg.DebounceDuration()
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.logger.Info("Watching for changes",
		logfields.Path(w.cfg.Source.Root),
		slog.Duration("debounce", debounce))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watch stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			// New directories must be watched before anything inside
			// them changes.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(fw, event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory",
							logfields.Path(event.Name),
							logfields.Error(err))
					}
				}
			}
			w.logger.Debug("Source change detected",
				logfields.Path(event.Name),
				slog.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))

		case <-trigger:
			w.rebuild(ctx)

		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	report, err := w.svc.Build(ctx)
	if err != nil {
		w.logger.Error("Build failed", logfields.Error(err))
		return
	}
	w.logger.Info("Build complete",
		logfields.BuildID(report.BuildID),
		slog.Int("built", len(report.Built)),
		slog.Int("skipped", len(report.Skipped)))
}

func (w *Watcher) startSchedule(trigger chan<- struct{}) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryInternal, sberrors.SeverityFatal, "create scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.CronJob(w.cfg.Watch.Schedule, false),
		gocron.NewTask(func() {
			select {
			case trigger <- struct{}{}:
			default: // rebuild already pending
			}
		}),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, sberrors.Wrap(err, sberrors.CategoryConfig, sberrors.SeverityFatal, "invalid watch schedule")
	}
	scheduler.Start()
	w.logger.Info("Scheduled periodic rebuilds", slog.String("schedule", w.cfg.Watch.Schedule))
	return scheduler, nil
}

// relevant filters out events that can never affect build output: attribute
// changes and anything under hidden paths.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(event.Name), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}

// addRecursive watches root and every non-hidden directory below it.
func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
