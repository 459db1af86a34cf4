// Package publish copies a rendered output tree into a deploy worktree and
// records it as a commit on a dedicated branch.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Publisher commits build output onto a publish branch.
type Publisher struct {
	deployDir string
	branch    string
	remote    string // optional push remote; empty disables pushing
	logger    *slog.Logger
}

// New creates a publisher for the given deploy directory and branch.
func New(deployDir, branch string) *Publisher {
	return &Publisher{
		deployDir: deployDir,
		branch:    branch,
		logger:    slog.Default(),
	}
}

// WithRemote enables pushing the publish branch after committing.
func (p *Publisher) WithRemote(remote string) *Publisher {
	p.remote = remote
	return p
}

// WithLogger sets a custom logger.
func (p *Publisher) WithLogger(logger *slog.Logger) *Publisher {
	p.logger = logger
	return p
}

// Publish mirrors outputDir into the deploy worktree and commits the result.
// An unchanged tree produces no commit and is not an error.
func (p *Publisher) Publish(ctx context.Context, outputDir, buildID string) error {
	repo, err := p.openOrInit()
	if err != nil {
		return err
	}

	if err := p.checkoutBranch(repo); err != nil {
		return err
	}

	if err := clearWorktree(p.deployDir); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "clear deploy worktree")
	}
	if err := copyTree(outputDir, p.deployDir); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "copy output tree")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "open worktree")
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "stage output tree")
	}

	status, err := wt.Status()
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "worktree status")
	}
	if status.IsClean() {
		p.logger.Info("Publish skipped, output unchanged", logfields.Path(p.deployDir))
		return nil
	}

	commit, err := wt.Commit(fmt.Sprintf("site build %s", buildID), &git.CommitOptions{
		Author: &object.Signature{
			Name:  "sitebuilder",
			Email: "sitebuilder@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "commit output tree")
	}
	p.logger.Info("Published build",
		logfields.BuildID(buildID),
		slog.String("branch", p.branch),
		slog.String("commit", commit.String()))

	if p.remote != "" {
		err := repo.PushContext(ctx, &git.PushOptions{RemoteName: p.remote})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "push publish branch")
		}
	}
	return nil
}

func (p *Publisher) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.deployDir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "open deploy repository")
	}

	if err := os.MkdirAll(p.deployDir, 0o750); err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "create deploy directory")
	}
	repo, err = git.PlainInit(p.deployDir, false)
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "init deploy repository")
	}
	p.logger.Info("Initialized deploy repository", logfields.Path(p.deployDir))
	return repo, nil
}

// checkoutBranch moves the worktree onto the publish branch, creating it when
// absent. On a repository with no commits yet, pointing HEAD at the branch is
// sufficient: the first commit will create it.
func (p *Publisher) checkoutBranch(repo *git.Repository) error {
	refName := plumbing.NewBranchReferenceName(p.branch)

	if _, err := repo.Reference(refName, true); err != nil {
		// Branch does not exist. With an unborn HEAD a checkout cannot
		// create it, so retarget HEAD directly.
		head := plumbing.NewSymbolicReference(plumbing.HEAD, refName)
		if err := repo.Storer.SetReference(head); err != nil {
			return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "set publish branch")
		}
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "open worktree")
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryPublish, sberrors.SeverityError, "checkout publish branch")
	}
	return nil
}

// clearWorktree removes everything under dir except the .git directory.
func clearWorktree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.Name() == git.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// copyTree mirrors src into dst, preserving the directory structure. Hidden
// directories are not published: the output root's stage tree holds assembled
// intermediates, never pages.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
