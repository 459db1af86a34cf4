// Package site wires the build pipeline together: scan, graph, execute, and
// the optional post-build steps (history, notifications, link checking).
package site

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/assemble"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/executor"
	"git.home.luguber.info/inful/sitebuilder/internal/graph"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/linkcheck"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
	"git.home.luguber.info/inful/sitebuilder/internal/scan"
)

// Service runs builds for one configuration.
type Service struct {
	cfg      *config.Config
	renderer render.Renderer
	recorder metrics.Recorder
	history  *history.Store
	notifier events.Notifier
	logger   *slog.Logger
}

// New creates a build service. The renderer is chosen from the configuration:
// an external command when one is configured, the built-in Markdown renderer
// otherwise.
func New(cfg *config.Config) (*Service, error) {
	var renderer render.Renderer
	if len(cfg.Renderer.Command) > 0 {
		r, err := render.NewCommandRenderer(cfg.Renderer.Command)
		if err != nil {
			return nil, err
		}
		renderer = r
	} else {
		renderer = render.NewMarkdownRenderer()
	}

	return &Service{
		cfg:      cfg,
		renderer: renderer,
		recorder: metrics.NoopRecorder{},
		notifier: events.NoopNotifier{},
		logger:   slog.Default(),
	}, nil
}

// WithRenderer overrides the configured renderer.
func (s *Service) WithRenderer(r render.Renderer) *Service {
	s.renderer = r
	return s
}

// WithRecorder sets a metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithHistory enables recording build reports to the given store.
func (s *Service) WithHistory(store *history.Store) *Service {
	s.history = store
	return s
}

// WithNotifier sets a build-completed notifier.
func (s *Service) WithNotifier(n events.Notifier) *Service {
	if n != nil {
		s.notifier = n
	}
	return s
}

// WithLogger sets a custom logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

func (s *Service) headerPath() string {
	return filepath.Join(s.cfg.Source.Root, s.cfg.Source.Header)
}

func (s *Service) footerPath() string {
	return filepath.Join(s.cfg.Source.Root, s.cfg.Source.Footer)
}

// Scan discovers source documents under the configured root. The header and
// footer fragments are never content documents.
func (s *Service) Scan() ([]scan.Document, error) {
	scanner := scan.New(
		s.cfg.Source.Root,
		s.cfg.Source.IncludeExtensions,
		[]string{s.cfg.Source.Header, s.cfg.Source.Footer},
	)
	return scanner.Scan()
}

// Plan scans the source tree and derives the dependency graph without
// building anything.
func (s *Service) Plan() (*graph.Graph, error) {
	docs, err := s.Scan()
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryScan, sberrors.SeverityFatal, "scan source tree")
	}
	builder := &graph.Builder{
		OutputRoot: s.cfg.Output.Directory,
		OutputExt:  s.cfg.Output.Extension,
		HeaderPath: s.headerPath(),
		FooterPath: s.footerPath(),
	}
	return builder.Build(docs, s.cfg.Source.ListingDirs)
}

// Build runs one full incremental build and returns the report. The returned
// error aggregates artifact failures; the report is non-nil whenever the
// pipeline reached execution.
func (s *Service) Build(ctx context.Context) (*executor.Report, error) {
	if s.cfg.Output.Clean {
		if err := s.Clean(); err != nil {
			return nil, err
		}
	}

	fragments, err := assemble.LoadFragments(s.headerPath(), s.footerPath())
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryAssemble, sberrors.SeverityFatal, "load fragments")
	}

	g, err := s.Plan()
	if err != nil {
		return nil, err
	}

	// The deadline is a scheduling cutoff, not a context timeout: artifacts
	// in flight when it expires still finish.
	exec := executor.New(fragments, s.renderer, s.cfg.Build.FailurePolicy, s.cfg.Build.Workers).
		WithDeadline(s.cfg.DeadlineDuration()).
		WithRecorder(s.recorder).
		WithLogger(s.logger)

	report, buildErr := exec.Execute(ctx, g)

	if s.history != nil {
		if err := s.history.Record(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("Failed to record build history", logfields.Error(err))
		}
	}
	if err := s.notifier.BuildCompleted(context.WithoutCancel(ctx), events.SummaryFromReport(report)); err != nil {
		s.logger.Warn("Failed to publish build notification", logfields.Error(err))
	}

	if s.cfg.LinkCheck.Enabled && report.Success() {
		s.checkLinks()
	}

	return report, buildErr
}

// checkLinks verifies relative links in the rendered output. Broken links are
// reported, not fatal.
func (s *Service) checkLinks() {
	checker := linkcheck.New(s.cfg.Output.Directory, s.cfg.Output.Extension).WithLogger(s.logger)
	issues, err := checker.Check()
	if err != nil {
		s.logger.Warn("Link check failed", logfields.Error(err))
		return
	}
	for _, issue := range issues {
		s.logger.Warn("Broken link",
			logfields.Path(issue.Page),
			slog.String("link", issue.Link))
	}
}

// Clean removes the output directory, forcing the next build to produce
// everything from scratch.
func (s *Service) Clean() error {
	if err := os.RemoveAll(s.cfg.Output.Directory); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityError, "clean output directory")
	}
	s.logger.Info("Cleaned output directory", logfields.Path(s.cfg.Output.Directory))
	return nil
}

// Publish commits the rendered output onto the configured publish branch.
func (s *Service) Publish(ctx context.Context, buildID string) error {
	p := publish.New(s.cfg.PublishDirectory(), s.cfg.Publish.Branch).WithLogger(s.logger)
	if s.cfg.Publish.Remote != "" {
		p = p.WithRemote(s.cfg.Publish.Remote)
	}
	return p.Publish(ctx, s.cfg.Output.Directory, buildID)
}
