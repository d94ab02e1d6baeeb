package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gobwas/glob"

	"eventsync/internal/bids"
	"eventsync/internal/logging"
	"eventsync/internal/services"
)

// CopyResult records which archive member replaced an events file.
type CopyResult struct {
	Events  string
	Archive string
	Member  string
}

type memberRef struct {
	archive string
	file    *zip.File
}

// Copier implements direct copy mode.
type Copier struct {
	root     string
	pattern  glob.Glob
	raw      string
	unlocker Unlocker
	logger   *slog.Logger
}

// NewCopier compiles pattern (for example *_events.tsv) for matching archive
// member names.
func NewCopier(root, pattern string, unlocker Unlocker, logger *slog.Logger) (*Copier, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "archive", "compile pattern", pattern, err)
	}
	return &Copier{
		root:     root,
		pattern:  g,
		raw:      pattern,
		unlocker: unlocker,
		logger:   logging.NewComponentLogger(logger, "archive"),
	}, nil
}

// CopyEvents replaces each events file with the one archive member of its
// subject/session that matches the pattern. Zero or several matches fail
// that file; the remaining files are still processed and all failures are
// returned joined.
func (c *Copier) CopyEvents(ctx context.Context, files []bids.EventFile) ([]CopyResult, error) {
	var results []CopyResult
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := c.copyOne(ctx, file)
		if err != nil {
			logging.ErrorWithContext(c.logger, "events copy failed", "events_copy_failed",
				logging.String("events_file", file.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "exactly one archive member must match "+c.raw),
			)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (c *Copier) copyOne(ctx context.Context, file bids.EventFile) (CopyResult, error) {
	archives, err := ArchivesFor(c.root, file.Session, file.Subject)
	if err != nil {
		return CopyResult{}, err
	}

	var readers []*zip.ReadCloser
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()
	var matches []memberRef
	for _, archivePath := range archives {
		reader, err := zip.OpenReader(archivePath)
		if err != nil {
			return CopyResult{}, services.Wrap(services.ErrValidation, "archive", "open", archivePath, err)
		}
		readers = append(readers, reader)
		for _, member := range reader.File {
			if !member.FileInfo().IsDir() && c.pattern.Match(member.Name) {
				matches = append(matches, memberRef{archive: archivePath, file: member})
			}
		}
	}
	if len(matches) != 1 {
		return CopyResult{}, services.Wrap(services.ErrValidation, "archive", "copy",
			fmt.Sprintf("%s: %d archive members match %s, want exactly one", file.Filename, len(matches), c.raw), nil)
	}

	match := matches[0]
	if c.unlocker != nil {
		if err := c.unlocker.Unlock(ctx, file.Path); err != nil {
			return CopyResult{}, err
		}
	}
	if err := copyMember(match.file, file.Path); err != nil {
		return CopyResult{}, services.Wrap(services.ErrValidation, "archive", "extract", match.file.Name, err)
	}
	c.logger.Info("events file copied from archive",
		logging.String("archive", match.archive),
		logging.String("member", match.file.Name),
		logging.String("events_file", file.Path),
	)
	return CopyResult{Events: file.Path, Archive: match.archive, Member: match.file.Name}, nil
}
