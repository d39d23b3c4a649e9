package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/mansourjabin/ftp-sync-tool/internal/syncignore"
	"github.com/mansourjabin/ftp-sync-tool/internal/utils"
)

// ChangeSet lists the relative paths that differ from the previously
// persisted fingerprints. Slices preserve tree enumeration order, which is
// also the order uploads run in.
type ChangeSet struct {
	New      []string
	Modified []string
}

func (c *ChangeSet) Total() int {
	return len(c.New) + len(c.Modified)
}

func (c *ChangeSet) Empty() bool {
	return c.Total() == 0
}

// Paths returns new then modified paths, preserving enumeration order within
// each group.
func (c *ChangeSet) Paths() []string {
	paths := make([]string, 0, c.Total())
	paths = append(paths, c.New...)
	return append(paths, c.Modified...)
}

// ProgressFunc is invoked after each fingerprinted file. It has no effect on
// detection semantics.
type ProgressFunc func(processed, total int, label string)

// Detector walks a watched root, fingerprints non-ignored files and diffs the
// result against the prior fingerprint map.
type Detector struct {
	rootDir string
	ignore  *syncignore.RuleSet
}

func NewDetector(rootDir string, ignore *syncignore.RuleSet) *Detector {
	return &Detector{rootDir: rootDir, ignore: ignore}
}

type fileEntry struct {
	absPath string
	relPath string
	info    fs.FileInfo
}

// Scan enumerates the tree, computes fingerprints and classifies each path
// against prior: absent means new, different fingerprint means modified.
// Individual unreadable files are skipped, not escalated; they appear in
// neither the returned fingerprint map nor the ChangeSet.
func (d *Detector) Scan(ctx context.Context, prior map[string]string, progress ProgressFunc) (map[string]string, *ChangeSet, error) {
	entries, err := d.collectFiles(ctx)
	if err != nil {
		return nil, nil, err
	}

	current := make(map[string]string, len(entries))
	changes := &ChangeSet{}
	total := len(entries)

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		fingerprint, err := Fingerprint(entry.absPath, entry.info)
		if err != nil {
			// best-effort policy: a file that cannot be read right now is
			// simply left out of this pass
			slog.Warn("skipping unreadable file", "path", entry.relPath, "error", err)
			continue
		}
		current[entry.relPath] = fingerprint

		if priorFingerprint, known := prior[entry.relPath]; !known {
			changes.New = append(changes.New, entry.relPath)
		} else if priorFingerprint != fingerprint {
			changes.Modified = append(changes.Modified, entry.relPath)
		}

		if progress != nil {
			progress(i+1, total, entry.relPath)
		}
	}

	return current, changes, nil
}

// collectFiles walks the tree once, pruning ignored directories so their
// contents are never descended into.
func (d *Detector) collectFiles(ctx context.Context) ([]fileEntry, error) {
	var entries []fileEntry

	err := filepath.WalkDir(d.rootDir, func(path string, dirEntry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == d.rootDir {
				return fmt.Errorf("walk %s: %w", d.rootDir, walkErr)
			}
			slog.Warn("skipping unreadable entry", "path", path, "error", walkErr)
			if dirEntry != nil && dirEntry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(d.rootDir, path)
		if err != nil {
			return fmt.Errorf("rel path for %s: %w", path, err)
		}
		relPath = utils.NormPath(relPath)

		if dirEntry.IsDir() {
			if path != d.rootDir && d.ignore.MatchPath(relPath) {
				return fs.SkipDir
			}
			return nil
		}

		info, err := dirEntry.Info()
		if err != nil {
			slog.Warn("skipping file without info", "path", relPath, "error", err)
			return nil
		}

		if d.ignore.MatchFile(relPath, info.Size()) {
			return nil
		}

		entries = append(entries, fileEntry{absPath: path, relPath: relPath, info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
