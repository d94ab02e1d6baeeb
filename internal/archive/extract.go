package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"eventsync/internal/bids"
	"eventsync/internal/fileutil"
	"eventsync/internal/logging"
	"eventsync/internal/lookup"
	"eventsync/internal/services"
)

// Unlocker grants write access to a tracked path.
type Unlocker interface {
	Unlock(ctx context.Context, path string) error
}

// Result describes the extraction for one subject/session.
type Result struct {
	Session   string
	Subject   string
	Archives  []string
	Extracted []string
	Existing  []string
}

// Found reports whether any archive member matched.
func (r Result) Found() bool {
	return len(r.Extracted)+len(r.Existing) > 0
}

// Extractor stages log files out of session archives.
type Extractor struct {
	root          string
	memberPattern string
	unlocker      Unlocker
	logger        *slog.Logger
}

// NewExtractor returns an extractor for the dataset at root. memberPattern
// uses {subject} and {session} placeholders.
func NewExtractor(root, memberPattern string, unlocker Unlocker, logger *slog.Logger) *Extractor {
	return &Extractor{
		root:          root,
		memberPattern: memberPattern,
		unlocker:      unlocker,
		logger:        logging.NewComponentLogger(logger, "archive"),
	}
}

// ArchivesFor lists sourcedata/<session>/<subject>_*.zip, sorted.
func ArchivesFor(root, session, subject string) ([]string, error) {
	pattern := filepath.Join(root, "sourcedata", session, subject+"_*.zip")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "archive", "glob", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LogDir is the staging directory for one subject/session.
func LogDir(root, session, subject string) string {
	return filepath.Join(root, "sourcedata", session, "logs", subject)
}

// MemberMatchers compiles the case-folded member patterns for a
// subject/session: one with the session as written and one with leading
// zeros stripped, since the presentation software writes ses-2 for ses-02.
func MemberMatchers(template, subject, session string) ([]glob.Glob, error) {
	sessions := []string{session}
	if stripped := lookup.NormalizeSession(session, true); stripped != session {
		sessions = append(sessions, stripped)
	}
	out := make([]glob.Glob, 0, len(sessions))
	for _, ses := range sessions {
		pattern := strings.NewReplacer(
			"{subject}", glob.QuoteMeta(subject),
			"{session}", glob.QuoteMeta(ses),
		).Replace(template)
		g, err := glob.Compile(bids.FoldLabel(pattern))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "archive", "compile pattern", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Extract copies every matching member of the subject/session archives into
// LogDir. Files already staged are kept. No matching member is not an error;
// the caller sees it through Result.Found. An archive that cannot be read is.
func (e *Extractor) Extract(ctx context.Context, session, subject string) (Result, error) {
	res := Result{Session: session, Subject: subject}
	logger := e.logger.With(logging.String(logging.FieldSubject, subject), logging.String(logging.FieldSession, session))

	matchers, err := MemberMatchers(e.memberPattern, subject, session)
	if err != nil {
		return res, err
	}
	archives, err := ArchivesFor(e.root, session, subject)
	if err != nil {
		return res, err
	}
	res.Archives = archives

	destDir := LogDir(e.root, session, subject)
	for _, archivePath := range archives {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.extractArchive(ctx, logger, archivePath, destDir, matchers, &res); err != nil {
			return res, err
		}
	}

	if !res.Found() {
		logging.WarnWithContext(logger, "no log files found in session archives", "log_archive_gap",
			logging.Strings("archives", archives),
			logging.String(logging.FieldErrorHint, "check sourcedata/<session>/<subject>_*.zip for the presentation logs"),
			logging.String(logging.FieldImpact, "tasks of this subject/session will have no logs to match"),
		)
	}
	return res, nil
}

func (e *Extractor) extractArchive(ctx context.Context, logger *slog.Logger, archivePath, destDir string, matchers []glob.Glob, res *Result) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "archive", "open", archivePath, err)
	}
	defer reader.Close()

	for _, member := range reader.File {
		if member.FileInfo().IsDir() || !matchesAny(matchers, bids.FoldLabel(member.Name)) {
			continue
		}
		dest := filepath.Join(destDir, path.Base(member.Name))
		if fileutil.Exists(dest) {
			res.Existing = append(res.Existing, dest)
			continue
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, "archive", "create log dir", destDir, err)
		}
		if e.unlocker != nil {
			if err := e.unlocker.Unlock(ctx, destDir); err != nil {
				return err
			}
		}
		if err := copyMember(member, dest); err != nil {
			return services.Wrap(services.ErrValidation, "archive", "extract", fmt.Sprintf("%s from %s", member.Name, archivePath), err)
		}
		logger.Info("log extracted",
			logging.String("archive", archivePath),
			logging.String("member", member.Name),
			logging.String("dest", dest),
		)
		res.Extracted = append(res.Extracted, dest)
	}
	return nil
}

// ExtractAll runs Extract for every subject/session that owns events files.
func (e *Extractor) ExtractAll(ctx context.Context, files []bids.EventFile) ([]Result, error) {
	type key struct{ session, subject string }
	seen := make(map[key]struct{})
	var keys []key
	for _, file := range files {
		k := key{session: file.Session, subject: file.Subject}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].session != keys[j].session {
			return keys[i].session < keys[j].session
		}
		return keys[i].subject < keys[j].subject
	})

	results := make([]Result, 0, len(keys))
	for _, k := range keys {
		res, err := e.Extract(ctx, k.session, k.subject)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func matchesAny(matchers []glob.Glob, name string) bool {
	for _, g := range matchers {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func copyMember(member *zip.File, dest string) error {
	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = fileutil.WriteReaderAtomic(dest, rc, int64(member.UncompressedSize64), 0o644)
	return err
}
