package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/mansourjabin/ftp-sync-tool/internal/state"
	"github.com/mansourjabin/ftp-sync-tool/internal/utils"
)

const (
	// ProbeTimeout bounds a pure connectivity check.
	ProbeTimeout = 10 * time.Second
	// ConnectTimeout bounds the connect of an operational session.
	ConnectTimeout = 30 * time.Second
)

// Strategy names the upload placement policy.
type Strategy string

const (
	// StrictPath stores a file only at its intended remote path.
	StrictPath Strategy = "strict"
	// FlattenOnFailure falls back to storing the bare filename in whatever
	// directory provisioning reached. The result records where the file
	// actually landed.
	FlattenOnFailure Strategy = "flatten"
)

// ParseStrategy maps a configured strategy name to a Strategy, defaulting to
// StrictPath.
func ParseStrategy(s string) Strategy {
	if Strategy(strings.ToLower(s)) == FlattenOnFailure {
		return FlattenOnFailure
	}
	return StrictPath
}

// SessionState tracks the connection lifecycle.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpen
	StateAuthenticated
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	default:
		return "closed"
	}
}

// ftpConn is the subset of the FTP control connection the session drives.
// *ftp.ServerConn satisfies it; tests substitute a fake.
type ftpConn interface {
	Login(user, password string) error
	Type(t ftp.TransferType) error
	ChangeDir(path string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

var _ ftpConn = (*ftp.ServerConn)(nil)

// Dialer establishes the control connection.
type Dialer func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error)

func defaultDialer(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// UploadResult reports where one file ended up.
type UploadResult struct {
	// Path is the intended remote path, relative to the base directory.
	Path string
	// StoredAt is the path the file was actually stored under. Differs from
	// Path only when the flatten fallback kicked in.
	StoredAt string
	// Flattened is true when StoredAt differs from Path.
	Flattened bool
}

// Session owns one authenticated FTP connection, reused for every upload in a
// synchronization run. It is not safe for concurrent use; the connection
// carries one in-flight transfer at a time.
type Session struct {
	endpoint *state.Endpoint
	strategy Strategy
	timeout  time.Duration
	dial     Dialer

	conn  ftpConn
	state SessionState
}

type Option func(*Session)

func WithStrategy(s Strategy) Option {
	return func(sess *Session) {
		sess.strategy = s
	}
}

func WithTimeout(d time.Duration) Option {
	return func(sess *Session) {
		sess.timeout = d
	}
}

// WithDialer substitutes the connection factory. Tests use this.
func WithDialer(d Dialer) Option {
	return func(sess *Session) {
		sess.dial = d
	}
}

func NewSession(endpoint *state.Endpoint, opts ...Option) *Session {
	s := &Session{
		endpoint: endpoint,
		strategy: ParseStrategy(endpoint.UploadStrategy),
		timeout:  ConnectTimeout,
		dial:     defaultDialer,
		state:    StateClosed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() SessionState { return s.state }

func (s *Session) Strategy() Strategy { return s.strategy }

// Open connects, authenticates and switches the channel to binary mode. On
// any failure the session returns to Closed. The client negotiates UTF-8 by
// itself during the feature exchange.
func (s *Session) Open(ctx context.Context) error {
	if s.state != StateClosed {
		return fmt.Errorf("open: session already %s", s.state)
	}

	addr := s.endpoint.Addr()
	conn, err := s.dial(ctx, addr, s.timeout)
	if err != nil {
		return &ConnectionError{Addr: addr, Err: err}
	}
	s.conn = conn
	s.state = StateOpen

	if err := conn.Login(s.endpoint.Username, s.endpoint.Password); err != nil {
		s.Close()
		return &AuthError{User: s.endpoint.Username, Err: err}
	}
	s.state = StateAuthenticated

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		s.Close()
		return &ConnectionError{Addr: addr, Err: fmt.Errorf("set binary mode: %w", err)}
	}
	s.state = StateReady

	slog.Debug("transfer session ready", "addr", addr, "strategy", s.strategy)
	return nil
}

// Close releases the connection. Idempotent.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	s.state = StateClosed
	return err
}

func (s *Session) baseDir() string {
	if s.endpoint.RemotePath != "" {
		return s.endpoint.RemotePath
	}
	return "/"
}

func (s *Session) cwdBase() error {
	return s.conn.ChangeDir(s.baseDir())
}

// parentSegments splits a normalized relative path into its directory
// segments, excluding the final filename.
func parentSegments(relPath string) []string {
	parts := strings.Split(relPath, "/")
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

// descend walks into each segment from the current directory, creating
// missing ones. It stops at the first segment that can neither be entered nor
// created: continuing past it would provision the remaining segments under
// the wrong parent. The entered segments are therefore always a prefix of the
// input, and the session's working directory sits at that prefix on return.
// A MakeDir failure on a directory that then accepts ChangeDir is the benign
// already-exists case and is not an error.
func (s *Session) descend(segments []string) (int, *PermissionError) {
	reached := 0
	for _, segment := range segments {
		if err := s.conn.ChangeDir(segment); err == nil {
			reached++
			continue
		}
		mkErr := s.conn.MakeDir(segment)
		if err := s.conn.ChangeDir(segment); err != nil {
			if mkErr == nil {
				mkErr = err
			}
			return reached, &PermissionError{Segment: segment, Err: mkErr}
		}
		reached++
	}
	return reached, nil
}

// EnsureRemoteDir provisions the parent directories of relPath below the base
// directory. A segment that cannot be provisioned is reported, not fatal;
// provisioning stops there rather than placing deeper segments under the
// wrong parent.
func (s *Session) EnsureRemoteDir(relPath string) ([]*PermissionError, error) {
	if s.state != StateReady {
		return nil, ErrSessionNotReady
	}
	if err := s.cwdBase(); err != nil {
		return nil, &PermissionError{Segment: s.baseDir(), Err: err}
	}

	_, perm := s.descend(parentSegments(utils.NormPath(relPath)))
	if perm == nil {
		return nil, nil
	}
	slog.Warn("remote dir provisioning failed", "segment", perm.Segment, "error", perm.Err)
	return []*PermissionError{perm}, nil
}

// Upload streams localPath to remotePath (relative to the base directory),
// provisioning remote directories as needed. When the direct store fails, it
// retries once by re-provisioning and storing the bare filename in the final
// directory. Under FlattenOnFailure an incomplete re-provision still stores
// the file in whatever directory was reached; the result says where.
func (s *Session) Upload(localPath, remotePath string) (*UploadResult, error) {
	if s.state != StateReady {
		return nil, ErrSessionNotReady
	}

	remotePath = utils.NormPath(remotePath)

	if _, err := s.EnsureRemoteDir(remotePath); err != nil {
		return nil, err
	}
	if err := s.cwdBase(); err != nil {
		return nil, &PermissionError{Segment: s.baseDir(), Err: err}
	}

	err := s.stor(localPath, remotePath)
	if err == nil {
		return &UploadResult{Path: remotePath, StoredAt: remotePath}, nil
	}
	var localErr *LocalReadError
	if errors.As(err, &localErr) {
		return nil, err
	}

	slog.Debug("direct store failed, re-provisioning", "path", remotePath, "error", err)
	return s.retryUpload(localPath, remotePath, err)
}

// retryUpload re-derives the directory segments, walks into them creating as
// it goes, and stores the bare filename in the directory the descent reached.
// Because descend stops at the first failed segment, the reached prefix names
// exactly the directory the file lands in.
func (s *Session) retryUpload(localPath, remotePath string, storErr error) (*UploadResult, error) {
	segments := parentSegments(remotePath)
	name := path.Base(remotePath)

	if err := s.cwdBase(); err != nil {
		return nil, &PermissionError{Segment: s.baseDir(), Err: err}
	}
	reached, perm := s.descend(segments)

	if reached < len(segments) && s.strategy == StrictPath {
		return nil, fmt.Errorf("upload %s: %w", remotePath, errors.Join(storErr, perm))
	}

	if err := s.stor(localPath, name); err != nil {
		return nil, fmt.Errorf("upload %s: %w", remotePath, err)
	}

	storedAt := path.Join(append(append([]string{}, segments[:reached]...), name)...)
	if storedAt != remotePath {
		slog.Warn("file stored at fallback location", "intended", remotePath, "actual", storedAt)
		return &UploadResult{Path: remotePath, StoredAt: storedAt, Flattened: true}, nil
	}
	return &UploadResult{Path: remotePath, StoredAt: storedAt}, nil
}

func (s *Session) stor(localPath, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &LocalReadError{Path: localPath, Err: err}
	}
	defer file.Close()

	return s.conn.Stor(remoteName, file)
}
