package syncignore

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/mansourjabin/ftp-sync-tool/internal/utils"
)

// IgnoreFileName is an optional per-root ignore file in gitignore syntax,
// layered on top of the built-in rules.
const IgnoreFileName = ".ftpsyncignore"

// DefaultMaxFileSize is the size ceiling above which files are always
// excluded from synchronization.
const DefaultMaxFileSize = 100 * 1024 * 1024

var defaultRules = []string{
	IgnoreFileName,
	".git", ".svn", "node_modules", ".DS_Store", "Thumbs.db",
	"__pycache__", ".idea", ".vscode",
	"*.pyc", "*.pyo", ".pytest_cache",
}

// RuleSet decides which relative paths are excluded from scanning and
// synchronization. A rule matches when any path segment contains the rule as
// a substring, or, for `*.ext` rules, when any segment matches the glob.
// Files above the size ceiling are always excluded.
type RuleSet struct {
	rootDir     string
	rules       []string
	maxFileSize int64
	ignoreFile  *gitignore.GitIgnore
}

type Option func(*RuleSet)

// WithRules appends rules to the defaults.
func WithRules(rules ...string) Option {
	return func(r *RuleSet) {
		r.rules = append(r.rules, rules...)
	}
}

// WithMaxFileSize overrides the size ceiling. Zero disables it.
func WithMaxFileSize(n int64) Option {
	return func(r *RuleSet) {
		r.maxFileSize = n
	}
}

func NewRuleSet(rootDir string, opts ...Option) *RuleSet {
	r := &RuleSet{
		rootDir:     rootDir,
		rules:       append([]string{}, defaultRules...),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the optional ignore file at the watched root. Missing file is
// fine; a damaged one only costs its extra rules.
func (r *RuleSet) Load() {
	ignorePath := filepath.Join(r.rootDir, IgnoreFileName)
	if !utils.FileExists(ignorePath) {
		r.ignoreFile = nil
		return
	}

	file, err := os.Open(ignorePath)
	if err != nil {
		slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		return
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
		return
	}

	r.ignoreFile = gitignore.CompileIgnoreLines(lines...)
	slog.Info("loaded ignore file", "path", ignorePath, "rules", len(lines))
}

// MatchPath reports whether relPath matches the rule set. It is used both for
// pruning directories during the walk and for filtering files.
func (r *RuleSet) MatchPath(relPath string) bool {
	relPath = utils.NormPath(relPath)
	segments := strings.Split(relPath, "/")

	for _, rule := range r.rules {
		for _, segment := range segments {
			if strings.HasPrefix(rule, "*") {
				if ok, _ := doublestar.Match(rule, segment); ok {
					return true
				}
			} else if strings.Contains(segment, rule) {
				return true
			}
		}
	}

	if r.ignoreFile != nil && r.ignoreFile.MatchesPath(relPath) {
		return true
	}
	return false
}

// MatchFile applies the rule set plus the size ceiling. Oversized files log
// an advisory notice so skipped uploads are visible.
func (r *RuleSet) MatchFile(relPath string, size int64) bool {
	if r.MatchPath(relPath) {
		return true
	}
	if r.maxFileSize > 0 && size > r.maxFileSize {
		slog.Warn("skipping large file",
			"path", relPath,
			"size", humanize.IBytes(uint64(size)),
			"limit", humanize.IBytes(uint64(r.maxFileSize)))
		return true
	}
	return false
}
