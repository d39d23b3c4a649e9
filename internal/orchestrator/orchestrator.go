package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/mansourjabin/ftp-sync-tool/internal/scan"
	"github.com/mansourjabin/ftp-sync-tool/internal/state"
	"github.com/mansourjabin/ftp-sync-tool/internal/syncignore"
	"github.com/mansourjabin/ftp-sync-tool/internal/transfer"
	"github.com/mansourjabin/ftp-sync-tool/internal/utils"
)

// ErrSyncInProgress means another run holds the advisory lock for this root.
var ErrSyncInProgress = errors.New("another sync is already running for this root")

// TransferSession is the slice of transfer.Session the orchestrator drives.
// The connection is exclusively owned by one run; uploads go through it one
// at a time.
type TransferSession interface {
	Open(ctx context.Context) error
	Upload(localPath, remotePath string) (*transfer.UploadResult, error)
	Strategy() transfer.Strategy
	Close() error
}

// SessionFactory builds a session for an endpoint.
type SessionFactory func(endpoint *state.Endpoint) TransferSession

func defaultSessionFactory(endpoint *state.Endpoint) TransferSession {
	return transfer.NewSession(endpoint)
}

// rootLocker is implemented by stores that can host an advisory lock file
// per root. Stores without one (in-memory) skip locking.
type rootLocker interface {
	LockPath(root string) string
}

// SyncResult aggregates per-file outcomes of one ApplySync run.
type SyncResult struct {
	Succeeded []string
	Failed    []string
	// Flattened maps intended remote paths to where the fallback strategy
	// actually stored them.
	Flattened map[string]string
	Strategy  transfer.Strategy
}

func (r *SyncResult) FullySucceeded() bool {
	return len(r.Failed) == 0
}

// RootInfo is a summary entry for a known watched root.
type RootInfo struct {
	Root string
	Host string
}

// Status describes a root's tracking state and pending changes.
type Status struct {
	Root     string
	Endpoint state.Endpoint
	Tracked  int
	Pending  *scan.ChangeSet
}

// Orchestrator wires change detection, transfer and state persistence behind
// the operation surface the front end calls. It performs no interactive I/O;
// confirmation between plan and apply belongs to the caller.
type Orchestrator struct {
	store      state.Store
	sessions   SessionFactory
	progress   scan.ProgressFunc
	ignoreOpts []syncignore.Option
}

type Option func(*Orchestrator)

// WithSessionFactory substitutes the transfer session constructor.
func WithSessionFactory(f SessionFactory) Option {
	return func(o *Orchestrator) {
		o.sessions = f
	}
}

// WithProgress installs a progress callback invoked during scans.
func WithProgress(p scan.ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = p
	}
}

// WithIgnoreOptions adds rule set options applied to every scan.
func WithIgnoreOptions(opts ...syncignore.Option) Option {
	return func(o *Orchestrator) {
		o.ignoreOpts = append(o.ignoreOpts, opts...)
	}
}

func New(store state.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		sessions: defaultSessionFactory,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) detectorFor(root string) *scan.Detector {
	rules := syncignore.NewRuleSet(root, o.ignoreOpts...)
	rules.Load()
	return scan.NewDetector(root, rules)
}

// TestConnection probes the endpoint: connect, authenticate, disconnect.
func (o *Orchestrator) TestConnection(ctx context.Context, endpoint *state.Endpoint) bool {
	return o.probe(ctx, endpoint) == nil
}

func (o *Orchestrator) probe(ctx context.Context, endpoint *state.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, transfer.ProbeTimeout)
	defer cancel()

	session := o.sessions(endpoint)
	if err := session.Open(ctx); err != nil {
		return err
	}
	return session.Close()
}

// Setup creates the sync state for a watched root. With markExisting, files
// already on disk are fingerprinted and recorded as synced, so only future
// changes upload.
func (o *Orchestrator) Setup(ctx context.Context, root string, endpoint state.Endpoint, markExisting bool) error {
	root, err := utils.ResolvePath(root)
	if err != nil {
		return err
	}
	if !utils.DirExists(root) {
		return fmt.Errorf("watch folder %s does not exist", root)
	}
	if err := endpoint.Validate(); err != nil {
		return err
	}
	if err := o.probe(ctx, &endpoint); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	st := state.NewSyncState(root, endpoint)
	if markExisting {
		current, _, err := o.detectorFor(root).Scan(ctx, nil, o.progress)
		if err != nil {
			return fmt.Errorf("initial scan: %w", err)
		}
		st.FileHashes = current
		slog.Info("marked existing files as synced", "root", root, "files", len(current))
	}

	return o.store.Save(st)
}

// PlanSync scans the root against its persisted fingerprints and returns the
// pending changes. State is never mutated.
func (o *Orchestrator) PlanSync(ctx context.Context, root string) (*scan.ChangeSet, error) {
	st, err := o.store.Load(root)
	if err != nil {
		return nil, err
	}

	_, changes, err := o.detectorFor(st.WatchFolder).Scan(ctx, st.FileHashes, o.progress)
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// ApplySync uploads every changed path over a single transfer session,
// collecting per-file outcomes without aborting on individual failures.
// Connection and authentication errors abort immediately with no commit.
//
// Commit policy: the fingerprints persisted afterwards reflect the current
// tree restricted to files whose upload did not fail; failed paths keep their
// prior entry so the next run retries them.
func (o *Orchestrator) ApplySync(ctx context.Context, root string, changes *scan.ChangeSet) (*SyncResult, error) {
	st, err := o.store.Load(root)
	if err != nil {
		return nil, err
	}

	unlock, err := o.lockRoot(st.WatchFolder)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session := o.sessions(&st.FTPConfig)
	result := &SyncResult{
		Flattened: make(map[string]string),
		Strategy:  session.Strategy(),
	}
	if changes.Empty() {
		return result, nil
	}

	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	defer session.Close()

	for _, relPath := range changes.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		localPath := filepath.Join(st.WatchFolder, filepath.FromSlash(relPath))
		uploadResult, err := session.Upload(localPath, relPath)
		if err != nil {
			slog.Error("upload failed", "path", relPath, "error", err)
			result.Failed = append(result.Failed, relPath)
			continue
		}

		slog.Info("uploaded", "path", relPath, "stored_at", uploadResult.StoredAt)
		result.Succeeded = append(result.Succeeded, relPath)
		if uploadResult.Flattened {
			result.Flattened[relPath] = uploadResult.StoredAt
		}
	}

	if len(result.Succeeded) > 0 {
		if err := o.commit(ctx, st, result.Failed); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// commit re-scans the tree and persists its fingerprints, except that failed
// paths keep their previous fingerprint (or stay untracked) so they are
// detected again next run. A cancelled context leaves state unmodified.
func (o *Orchestrator) commit(ctx context.Context, st *state.SyncState, failed []string) error {
	current, _, err := o.detectorFor(st.WatchFolder).Scan(ctx, st.FileHashes, nil)
	if err != nil {
		return fmt.Errorf("post-sync scan: %w", err)
	}

	for _, relPath := range failed {
		if prior, ok := st.FileHashes[relPath]; ok {
			current[relPath] = prior
		} else {
			delete(current, relPath)
		}
	}

	st.FileHashes = current
	return o.store.Save(st)
}

func (o *Orchestrator) lockRoot(root string) (func(), error) {
	locker, ok := o.store.(rootLocker)
	if !ok {
		return func() {}, nil
	}

	lock := flock.New(locker.LockPath(root))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock root: %w", err)
	}
	if !locked {
		return nil, ErrSyncInProgress
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("unlock root", "error", err)
			return
		}
		os.Remove(lock.Path())
	}, nil
}

// Status reports the tracked file count and the pending change set.
func (o *Orchestrator) Status(ctx context.Context, root string) (*Status, error) {
	st, err := o.store.Load(root)
	if err != nil {
		return nil, err
	}
	changes, err := o.PlanSync(ctx, root)
	if err != nil {
		return nil, err
	}
	return &Status{
		Root:     st.WatchFolder,
		Endpoint: st.FTPConfig,
		Tracked:  len(st.FileHashes),
		Pending:  changes,
	}, nil
}

// ResetTracking clears the fingerprint map so every file is treated as new on
// the next run. The endpoint configuration is kept.
func (o *Orchestrator) ResetTracking(root string) error {
	st, err := o.store.Load(root)
	if err != nil {
		return err
	}
	st.FileHashes = make(map[string]string)
	return o.store.Save(st)
}

// ListKnownRoots returns a summary of every configured root.
func (o *Orchestrator) ListKnownRoots() ([]RootInfo, error) {
	states, err := o.store.List()
	if err != nil {
		return nil, err
	}
	infos := make([]RootInfo, 0, len(states))
	for _, st := range states {
		infos = append(infos, RootInfo{Root: st.WatchFolder, Host: st.FTPConfig.Host})
	}
	return infos, nil
}

// DeleteState removes a root's persisted state entirely.
func (o *Orchestrator) DeleteState(root string) error {
	return o.store.Delete(root)
}
