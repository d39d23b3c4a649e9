package state

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mansourjabin/ftp-sync-tool/internal/utils"
)

const stateFilePrefix = "config_"

// DefaultStateDir returns the per-user directory holding sync state files.
func DefaultStateDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ftp_sync")
}

// FileStore keeps one JSON document per watched root inside a state
// directory. File names derive deterministically from the canonical root path
// so repeated runs against the same folder reuse the same state.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultStateDir()
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// RootKey returns the stable identity of a watched root: the first 8 hex
// characters of the MD5 of its canonical path.
func RootKey(root string) string {
	canonical, err := utils.ResolvePath(root)
	if err != nil {
		canonical = root
	}
	sum := md5.Sum([]byte(canonical))
	return fmt.Sprintf("%x", sum)[:8]
}

func (s *FileStore) statePath(root string) string {
	return filepath.Join(s.dir, stateFilePrefix+RootKey(root)+".json")
}

// LockPath returns the advisory lock file path guarding runs against root.
func (s *FileStore) LockPath(root string) string {
	return filepath.Join(s.dir, stateFilePrefix+RootKey(root)+".lock")
}

func (s *FileStore) Load(root string) (*SyncState, error) {
	data, err := os.ReadFile(s.statePath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var st SyncState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	if st.FileHashes == nil {
		st.FileHashes = make(map[string]string)
	}
	return &st, nil
}

// Save writes the whole document via a temp file and rename, so a crashed
// write never leaves a truncated state file behind.
func (s *FileStore) Save(st *SyncState) error {
	canonical, err := utils.ResolvePath(st.WatchFolder)
	if err != nil {
		return fmt.Errorf("resolve watch folder: %w", err)
	}
	st.WatchFolder = canonical

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}

	target := s.statePath(st.WatchFolder)
	tmp, err := os.CreateTemp(s.dir, stateFilePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace sync state: %w", err)
	}

	slog.Debug("sync state saved", "path", target, "tracked", len(st.FileHashes))
	return nil
}

func (s *FileStore) Delete(root string) error {
	err := os.Remove(s.statePath(root))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// List loads every state document in the directory. Unreadable or corrupt
// files are skipped with a warning, matching the tolerant listing behavior
// users rely on when a single config is damaged.
func (s *FileStore) List() ([]*SyncState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}

	var states []*SyncState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, stateFilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			slog.Warn("skipping unreadable state file", "file", name, "error", err)
			continue
		}
		var st SyncState
		if err := json.Unmarshal(data, &st); err != nil {
			slog.Warn("skipping corrupt state file", "file", name, "error", err)
			continue
		}
		if st.FileHashes == nil {
			st.FileHashes = make(map[string]string)
		}
		states = append(states, &st)
	}
	return states, nil
}
