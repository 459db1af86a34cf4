package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// Validate checks the configuration for inconsistencies that would make a
// build misbehave. It is called by Load after defaults are applied.
func (c *Config) Validate() error {
	if len(c.Source.IncludeExtensions) == 0 {
		return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
			"source.include_extensions must not be empty")
	}
	for _, ext := range c.Source.IncludeExtensions {
		if !strings.HasPrefix(ext, ".") {
			return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
				fmt.Sprintf("include extension %q must start with a dot", ext))
		}
	}
	if !strings.HasPrefix(c.Output.Extension, ".") {
		return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
			fmt.Sprintf("output extension %q must start with a dot", c.Output.Extension))
	}

	switch c.Build.FailurePolicy {
	case PolicyBestEffort, PolicyFailFast:
	default:
		return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
			fmt.Sprintf("unknown failure policy %q", c.Build.FailurePolicy))
	}

	if c.Build.Deadline != "" {
		if _, err := time.ParseDuration(c.Build.Deadline); err != nil {
			return sberrors.Wrap(err, sberrors.CategoryValidation, sberrors.SeverityFatal,
				"invalid build.deadline")
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return sberrors.Wrap(err, sberrors.CategoryValidation, sberrors.SeverityFatal,
				"invalid watch.debounce")
		}
	}

	if c.Build.Workers < 0 {
		return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
			"build.workers must not be negative")
	}

	// The output root must never overlap the source root: the executor writes
	// artifacts there and the scanner must not rediscover them as inputs.
	if overlap, err := pathsOverlap(c.Source.Root, c.Output.Directory); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryValidation, sberrors.SeverityFatal,
			"cannot resolve source/output roots")
	} else if overlap {
		return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
			"output.directory must not overlap source.root")
	}

	for _, dir := range c.Source.ListingDirs {
		if filepath.IsAbs(dir) || strings.Contains(dir, "..") {
			return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityFatal,
				fmt.Sprintf("listing directory %q must be relative to the source root", dir))
		}
	}

	return nil
}

// pathsOverlap reports whether one path is equal to or nested under the other.
func pathsOverlap(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	return strings.HasPrefix(absA+string(filepath.Separator), absB+string(filepath.Separator)) ||
		strings.HasPrefix(absB+string(filepath.Separator), absA+string(filepath.Separator)), nil
}
