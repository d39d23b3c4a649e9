package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mansourjabin/ftp-sync-tool/internal/state"
)

// fakeConn simulates a remote FTP server's directory tree and records the
// command sequence the session issues.
type fakeConn struct {
	cmds   []string
	dirs   map[string]bool
	stored []string
	cwd    string

	loginErr    error
	typeErr     error
	mkdirErr    map[string]error
	cwdFailOnce map[string]bool
	storFails   map[string]int
	quitCalls   int
}

func newFakeConn(existingDirs ...string) *fakeConn {
	dirs := map[string]bool{"/": true}
	for _, d := range existingDirs {
		dirs[d] = true
	}
	return &fakeConn{
		dirs:        dirs,
		cwd:         "/",
		mkdirErr:    map[string]error{},
		cwdFailOnce: map[string]bool{},
		storFails:   map[string]int{},
	}
}

func (f *fakeConn) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(f.cwd, p)
}

func (f *fakeConn) Login(user, password string) error {
	f.cmds = append(f.cmds, "LOGIN "+user)
	return f.loginErr
}

func (f *fakeConn) Type(t ftp.TransferType) error {
	f.cmds = append(f.cmds, "TYPE")
	return f.typeErr
}

func (f *fakeConn) ChangeDir(p string) error {
	target := f.resolve(p)
	f.cmds = append(f.cmds, "CWD "+target)
	if f.cwdFailOnce[target] {
		delete(f.cwdFailOnce, target)
		return fmt.Errorf("550 %s: transient failure", target)
	}
	if !f.dirs[target] {
		return fmt.Errorf("550 %s: no such directory", target)
	}
	f.cwd = target
	return nil
}

func (f *fakeConn) MakeDir(p string) error {
	target := f.resolve(p)
	f.cmds = append(f.cmds, "MKD "+target)
	if err, ok := f.mkdirErr[target]; ok {
		return err
	}
	f.dirs[target] = true
	return nil
}

func (f *fakeConn) Stor(p string, r io.Reader) error {
	target := f.resolve(p)
	f.cmds = append(f.cmds, "STOR "+target)
	if n := f.storFails[target]; n > 0 {
		f.storFails[target] = n - 1
		return fmt.Errorf("426 %s: transfer aborted", target)
	}
	if !f.dirs[path.Dir(target)] {
		return fmt.Errorf("550 %s: no such directory", path.Dir(target))
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.stored = append(f.stored, target)
	return nil
}

func (f *fakeConn) Quit() error {
	f.quitCalls++
	return nil
}

func testEndpoint(strategy string) *state.Endpoint {
	return &state.Endpoint{
		Host:           "ftp.example.com",
		Port:           21,
		Username:       "deploy",
		Password:       "secret",
		RemotePath:     "/base",
		UploadStrategy: strategy,
	}
}

func newTestSession(conn *fakeConn, strategy string) *Session {
	return NewSession(testEndpoint(strategy), WithDialer(
		func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
			return conn, nil
		},
	))
}

func localFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSessionOpenLifecycle(t *testing.T) {
	conn := newFakeConn("/base")
	session := newTestSession(conn, "")

	assert.Equal(t, StateClosed, session.State())
	require.NoError(t, session.Open(context.Background()))
	assert.Equal(t, StateReady, session.State())
	assert.Equal(t, []string{"LOGIN deploy", "TYPE"}, conn.cmds)

	require.NoError(t, session.Close())
	assert.Equal(t, StateClosed, session.State())
	// idempotent
	require.NoError(t, session.Close())
	assert.Equal(t, 1, conn.quitCalls)
}

func TestSessionOpenTwice(t *testing.T) {
	conn := newFakeConn("/base")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))
	assert.Error(t, session.Open(context.Background()))
}

func TestSessionDialFailure(t *testing.T) {
	session := NewSession(testEndpoint(""), WithDialer(
		func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
			return nil, errors.New("connection refused")
		},
	))

	err := session.Open(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "ftp.example.com:21", connErr.Addr)
	assert.Equal(t, StateClosed, session.State())
}

func TestSessionAuthFailure(t *testing.T) {
	conn := newFakeConn("/base")
	conn.loginErr = errors.New("530 login incorrect")
	session := newTestSession(conn, "")

	err := session.Open(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "deploy", authErr.User)
	assert.Equal(t, StateClosed, session.State())
	assert.Equal(t, 1, conn.quitCalls)
}

func TestSessionBinaryModeFailure(t *testing.T) {
	conn := newFakeConn("/base")
	conn.typeErr = errors.New("500 not understood")
	session := newTestSession(conn, "")

	err := session.Open(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, StateClosed, session.State())
}

func TestUploadNotReady(t *testing.T) {
	session := newTestSession(newFakeConn("/base"), "")
	_, err := session.Upload(localFile(t, "x"), "a.txt")
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestUploadProvisionsDirectories(t *testing.T) {
	conn := newFakeConn("/base")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	res, err := session.Upload(localFile(t, "hello"), "a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", res.Path)
	assert.Equal(t, "a/b/c.txt", res.StoredAt)
	assert.False(t, res.Flattened)
	assert.Equal(t, []string{"/base/a/b/c.txt"}, conn.stored)

	// directories a and a/b created before the store command
	var mkdA, mkdB, stor int
	for i, cmd := range conn.cmds {
		switch cmd {
		case "MKD /base/a":
			mkdA = i
		case "MKD /base/a/b":
			mkdB = i
		case "STOR /base/a/b/c.txt":
			stor = i
		}
	}
	assert.Less(t, mkdA, mkdB)
	assert.Less(t, mkdB, stor)
}

func TestUploadExistingDirectoriesNotRecreated(t *testing.T) {
	conn := newFakeConn("/base", "/base/a", "/base/a/b")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	_, err := session.Upload(localFile(t, "hello"), "a/b/c.txt")
	require.NoError(t, err)
	for _, cmd := range conn.cmds {
		assert.NotContains(t, cmd, "MKD")
	}
}

func TestUploadRootLevelFile(t *testing.T) {
	conn := newFakeConn("/base")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	res, err := session.Upload(localFile(t, "hello"), "index.html")
	require.NoError(t, err)
	assert.Equal(t, "index.html", res.StoredAt)
	assert.Equal(t, []string{"/base/index.html"}, conn.stored)
}

func TestUploadBackslashPathNormalized(t *testing.T) {
	conn := newFakeConn("/base")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	res, err := session.Upload(localFile(t, "hello"), `a\c.txt`)
	require.NoError(t, err)
	assert.Equal(t, "a/c.txt", res.StoredAt)
}

func TestEnsureRemoteDirBenignMkdirRace(t *testing.T) {
	// MKD fails but the directory turns out to be enterable: the
	// already-exists case must not produce a PermissionError.
	conn := newFakeConn("/base", "/base/a")
	conn.cwdFailOnce["/base/a"] = true
	conn.mkdirErr["/base/a"] = errors.New("550 already exists")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	perms, err := session.EnsureRemoteDir("a/c.txt")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestEnsureRemoteDirStopsAtDeniedSegment(t *testing.T) {
	conn := newFakeConn("/base", "/base/a")
	conn.mkdirErr["/base/denied"] = errors.New("550 permission denied")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	perms, err := session.EnsureRemoteDir("denied/sub/c.txt")
	require.NoError(t, err)
	require.NotEmpty(t, perms)
	assert.Equal(t, "denied", perms[0].Segment)
	// the segment below the denied one must not land under the wrong parent
	assert.False(t, conn.dirs["/base/sub"])
}

func TestUploadRetryAfterTransientStorFailure(t *testing.T) {
	conn := newFakeConn("/base")
	conn.storFails["/base/a/c.txt"] = 1
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	res, err := session.Upload(localFile(t, "hello"), "a/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/c.txt", res.StoredAt)
	assert.False(t, res.Flattened)
	assert.Equal(t, []string{"/base/a/c.txt"}, conn.stored)
}

func TestUploadStrictFailsWhenDirDenied(t *testing.T) {
	conn := newFakeConn("/base")
	conn.mkdirErr["/base/denied"] = errors.New("550 permission denied")
	session := newTestSession(conn, "strict")
	require.NoError(t, session.Open(context.Background()))

	_, err := session.Upload(localFile(t, "hello"), "denied/c.txt")
	require.Error(t, err)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
	assert.Empty(t, conn.stored)
}

func TestUploadFlattenOnFailure(t *testing.T) {
	conn := newFakeConn("/base")
	conn.mkdirErr["/base/a/denied"] = errors.New("550 permission denied")
	session := newTestSession(conn, "flatten")
	require.NoError(t, session.Open(context.Background()))

	res, err := session.Upload(localFile(t, "hello"), "a/denied/c.txt")
	require.NoError(t, err)
	assert.True(t, res.Flattened)
	assert.Equal(t, "a/denied/c.txt", res.Path)
	assert.Equal(t, "a/c.txt", res.StoredAt)
	assert.Equal(t, []string{"/base/a/c.txt"}, conn.stored)
}

func TestUploadFlattenMidPathFailure(t *testing.T) {
	// the denied directory sits in the middle of the path: the fallback must
	// store in the last directory actually entered and report that path, not
	// provision the deeper segments under the wrong parent.
	conn := newFakeConn("/base")
	conn.mkdirErr["/base/a/denied"] = errors.New("550 permission denied")
	session := newTestSession(conn, "flatten")
	require.NoError(t, session.Open(context.Background()))

	res, err := session.Upload(localFile(t, "hello"), "a/denied/sub/c.txt")
	require.NoError(t, err)
	assert.True(t, res.Flattened)
	assert.Equal(t, "a/denied/sub/c.txt", res.Path)
	assert.Equal(t, "a/c.txt", res.StoredAt)
	assert.Equal(t, []string{"/base/a/c.txt"}, conn.stored)
	assert.False(t, conn.dirs["/base/a/sub"])
}

func TestUploadLocalReadError(t *testing.T) {
	conn := newFakeConn("/base")
	session := newTestSession(conn, "")
	require.NoError(t, session.Open(context.Background()))

	_, err := session.Upload(filepath.Join(t.TempDir(), "missing.txt"), "a/c.txt")
	var localErr *LocalReadError
	require.ErrorAs(t, err, &localErr)
	assert.Empty(t, conn.stored)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrictPath, ParseStrategy(""))
	assert.Equal(t, StrictPath, ParseStrategy("strict"))
	assert.Equal(t, StrictPath, ParseStrategy("unknown"))
	assert.Equal(t, FlattenOnFailure, ParseStrategy("flatten"))
	assert.Equal(t, FlattenOnFailure, ParseStrategy("Flatten"))
}
