package state

import (
	"sync"

	"github.com/mansourjabin/ftp-sync-tool/internal/utils"
)

// MemStore is an in-memory Store for tests and embedding.
type MemStore struct {
	mu     sync.Mutex
	states map[string]*SyncState
}

func NewMemStore() *MemStore {
	return &MemStore{states: make(map[string]*SyncState)}
}

func memKey(root string) string {
	canonical, err := utils.ResolvePath(root)
	if err != nil {
		return root
	}
	return canonical
}

func (s *MemStore) Load(root string) (*SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[memKey(root)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(st), nil
}

func (s *MemStore) Save(st *SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[memKey(st.WatchFolder)] = cloneState(st)
	return nil
}

func (s *MemStore) Delete(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(root)
	if _, ok := s.states[key]; !ok {
		return ErrNotFound
	}
	delete(s.states, key)
	return nil
}

func (s *MemStore) List() ([]*SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make([]*SyncState, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, cloneState(st))
	}
	return states, nil
}

func cloneState(st *SyncState) *SyncState {
	hashes := make(map[string]string, len(st.FileHashes))
	for k, v := range st.FileHashes {
		hashes[k] = v
	}
	return &SyncState{
		WatchFolder: st.WatchFolder,
		FTPConfig:   st.FTPConfig,
		FileHashes:  hashes,
	}
}
