package syncignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSetSubstringMatch(t *testing.T) {
	rules := NewRuleSet(t.TempDir())

	assert.True(t, rules.MatchPath(".git/config"))
	assert.True(t, rules.MatchPath("web/node_modules/lodash/index.js"))
	assert.True(t, rules.MatchPath("docs/.DS_Store"))
	// substring semantics: a segment containing the rule matches
	assert.True(t, rules.MatchPath("app/__pycache__/mod.cpython-311.pyc"))

	assert.False(t, rules.MatchPath("src/main.go"))
	assert.False(t, rules.MatchPath("a/b/c.txt"))
}

func TestRuleSetGlobMatch(t *testing.T) {
	rules := NewRuleSet(t.TempDir())

	assert.True(t, rules.MatchPath("pkg/util.pyc"))
	assert.True(t, rules.MatchPath("deep/nested/dir/cache.pyo"))
	assert.False(t, rules.MatchPath("pkg/util.py"))
}

func TestRuleSetCustomRules(t *testing.T) {
	rules := NewRuleSet(t.TempDir(), WithRules("*.tmp", "build"))

	assert.True(t, rules.MatchPath("out/scratch.tmp"))
	assert.True(t, rules.MatchPath("build/app.js"))
	// defaults still apply
	assert.True(t, rules.MatchPath(".git/HEAD"))
}

func TestRuleSetBackslashPaths(t *testing.T) {
	rules := NewRuleSet(t.TempDir())
	assert.True(t, rules.MatchPath(`web\node_modules\x.js`))
}

func TestRuleSetSizeCeiling(t *testing.T) {
	rules := NewRuleSet(t.TempDir(), WithMaxFileSize(1024))

	assert.False(t, rules.MatchFile("ok.bin", 1024))
	assert.True(t, rules.MatchFile("big.bin", 1025))

	// ceiling disabled
	unlimited := NewRuleSet(t.TempDir(), WithMaxFileSize(0))
	assert.False(t, unlimited.MatchFile("huge.bin", 1<<40))
}

func TestRuleSetIgnoreFile(t *testing.T) {
	root := t.TempDir()
	rules := NewRuleSet(root)
	rules.Load()
	assert.False(t, rules.MatchPath("secrets/key.pem"))

	content := []byte("# comment\nsecrets/**\n*.bak\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), content, 0o644))
	rules.Load()

	assert.True(t, rules.MatchPath("secrets/key.pem"))
	assert.True(t, rules.MatchPath("db/dump.bak"))
	assert.False(t, rules.MatchPath("src/main.go"))
}
