package project

import (
	"context"
	"time"

	"github.com/oar-cd/hound/bloodhound"
	"github.com/oar-cd/hound/docker"
	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/ingest"
)

// ProjectManager defines the interface for project lifecycle operations
type ProjectManager interface {
	List(ctx context.Context) ([]*ProjectInfo, error)
	Show(ctx context.Context, name string) (*ProjectInfo, error)
	Start(ctx context.Context, opts StartOptions) (*StartResult, error)
	Data(ctx context.Context, opts DataOptions) (*ingest.Result, error)
	Clear(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// SessionClient is the part of the BloodHound API the lifecycle needs
type SessionClient interface {
	ingest.Uploader
	Login(ctx context.Context, username, secret string) (string, error)
	GetSelf(ctx context.Context) (string, error)
	RotatePassword(ctx context.Context, userID, current, next string) error
	EnableFeature(ctx context.Context, key string) error
	ClearDatabase(ctx context.Context) error
}

var _ SessionClient = (*bloodhound.Client)(nil)

// RuntimeFactory builds the compose runner of a project
type RuntimeFactory func(p *domain.Project) docker.ComposeRunner

// SessionFactory builds an unauthenticated API client for a project
type SessionFactory func(p *domain.Project) SessionClient

// StartOptions are the arguments of the start command
type StartOptions struct {
	Name  string
	Ports domain.Ports
	// Password is the operator password. A random one is generated when empty.
	Password string
	Timeout  time.Duration
	NoGDS    bool
}

// StartResult describes a project that reached Ready
type StartResult struct {
	Project *domain.Project
	// Resumed is set when an existing project was relaunched instead of bootstrapped
	Resumed bool
	// GeneratedPassword is set when the operator did not choose a password
	GeneratedPassword bool
	// Warnings are non-fatal failures, such as a feature toggle that was rejected
	Warnings []error
}

// DataOptions are the arguments of the data command
type DataOptions struct {
	Name        string
	ArchivePath string
	// OnUploaded is called with each file name once the server accepted it
	OnUploaded func(file string)
}

// ProjectInfo is a project together with what Docker reports about it
type ProjectInfo struct {
	Project    *domain.Project
	Runtime    domain.RuntimeStatus
	Ingestions []*domain.Ingestion
}
