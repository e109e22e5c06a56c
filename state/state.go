// Package state persists project snapshots inside each project directory.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/encryption"
	"golang.org/x/sys/unix"
)

// SnapshotVersion is the schema version written to every snapshot
const SnapshotVersion = 1

// Snapshot is the on-disk form of a project. Secrets are stored encrypted.
type Snapshot struct {
	Version        int                   `json:"version"`
	Name           string                `json:"name"`
	Ports          domain.Ports          `json:"ports"`
	NoGDS          bool                  `json:"no_gds"`
	TimeoutSeconds float64               `json:"timeout_seconds"`
	State          domain.LifecycleState `json:"state"`
	Password       string                `json:"password"`
	UserID         string                `json:"user_id,omitempty"`
	SessionToken   string                `json:"session_token,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Store reads and writes snapshots for projects living under a source directory
type Store struct {
	sourceDir  string
	encryption *encryption.EncryptionService
}

func NewStore(sourceDir string, encryptionSvc *encryption.EncryptionService) *Store {
	return &Store{sourceDir: sourceDir, encryption: encryptionSvc}
}

// SourceDir is the parent directory of all project directories
func (s *Store) SourceDir() string {
	return s.sourceDir
}

func (s *Store) statePath(name string) string {
	return filepath.Join(s.sourceDir, name, domain.StateFileName)
}

// Exists reports whether a snapshot exists for the named project
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.statePath(name))
	return err == nil && info.Mode().IsRegular()
}

// Save writes the snapshot for p, replacing any previous one atomically
func (s *Store) Save(p *domain.Project) error {
	password, err := s.encryption.Encrypt(p.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	token, err := s.encryption.Encrypt(p.SessionToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}

	snapshot := Snapshot{
		Version:        SnapshotVersion,
		Name:           p.Name,
		Ports:          p.Ports,
		NoGDS:          p.NoGDS,
		TimeoutSeconds: p.Timeout.Seconds(),
		State:          p.State,
		Password:       password,
		UserID:         p.UserID,
		SessionToken:   token,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	path := s.statePath(p.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	slog.Debug("Snapshot saved",
		"layer", "state",
		"operation", "save",
		"project_name", p.Name,
		"state", p.State.String())
	return nil
}

// Load reads the snapshot of the named project. A missing snapshot is reported
// as domain.ErrProjectNotFound.
func (s *Store) Load(name string) (*domain.Project, error) {
	data, err := os.ReadFile(s.statePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, unix.ENOTDIR) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot of %s: %w", name, err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d for project %s", snapshot.Version, name)
	}

	password, err := s.encryption.Decrypt(snapshot.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt password: %w", err)
	}
	token, err := s.encryption.Decrypt(snapshot.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session token: %w", err)
	}

	return &domain.Project{
		Name:            snapshot.Name,
		SourceDirectory: s.sourceDir,
		Ports:           snapshot.Ports,
		Password:        password,
		Timeout:         time.Duration(snapshot.TimeoutSeconds * float64(time.Second)),
		NoGDS:           snapshot.NoGDS,
		State:           snapshot.State,
		UserID:          snapshot.UserID,
		SessionToken:    token,
		CreatedAt:       snapshot.CreatedAt,
		UpdatedAt:       snapshot.UpdatedAt,
	}, nil
}

// RemoveProject deletes the whole project directory, snapshot included
func (s *Store) RemoveProject(name string) error {
	if err := os.RemoveAll(filepath.Join(s.sourceDir, name)); err != nil {
		return fmt.Errorf("failed to remove project directory: %w", err)
	}
	return nil
}
