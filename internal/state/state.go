package state

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Endpoint describes the remote FTP server a watched root synchronizes to.
type Endpoint struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	RemotePath string `json:"remote_path"`

	// UploadStrategy selects how uploads behave when remote directory
	// provisioning fails. Empty means strict path placement.
	UploadStrategy string `json:"upload_strategy,omitempty"`
}

// Addr returns the host:port dial address.
func (e *Endpoint) Addr() string {
	port := e.Port
	if port == 0 {
		port = 21
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

func (e *Endpoint) Validate() error {
	if e.Host == "" {
		return errors.New("endpoint host is required")
	}
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("endpoint port %d out of range", e.Port)
	}
	if e.Username == "" {
		return errors.New("endpoint username is required")
	}
	return nil
}

// SyncState is the persisted record for one watched root: where it syncs to
// and the fingerprints of the last committed scan. FileHashes keys are
// forward-slash relative paths.
type SyncState struct {
	WatchFolder string            `json:"watch_folder"`
	FTPConfig   Endpoint          `json:"ftp_config"`
	FileHashes  map[string]string `json:"file_hashes"`
}

func NewSyncState(root string, endpoint Endpoint) *SyncState {
	return &SyncState{
		WatchFolder: root,
		FTPConfig:   endpoint,
		FileHashes:  make(map[string]string),
	}
}
