package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for exit codes and machine-readable output
type ErrorKind string

const (
	KindInvalidPassword      ErrorKind = "InvalidPassword"
	KindInvalidProject       ErrorKind = "InvalidProject"
	KindInvalidPorts         ErrorKind = "InvalidPorts"
	KindPortConflict         ErrorKind = "PortConflict"
	KindDirectoryCreate      ErrorKind = "DirectoryCreateError"
	KindRuntimeLaunch        ErrorKind = "RuntimeLaunchError"
	KindBootstrapTimeout     ErrorKind = "BootstrapTimeout"
	KindAuthenticationFailed ErrorKind = "AuthenticationFailed"
	KindUnauthenticated      ErrorKind = "Unauthenticated"
	KindUploadFailed         ErrorKind = "UploadFailed"
	KindIngestFailed         ErrorKind = "IngestFailed"
	KindIngestTimeout        ErrorKind = "IngestTimeout"
	KindProjectNotFound      ErrorKind = "ProjectNotFound"
	KindProjectExists        ErrorKind = "ProjectExists"
	KindProjectLocked        ErrorKind = "ProjectLocked"
	KindClearFailed          ErrorKind = "ClearFailed"
	KindFeatureToggleWarning ErrorKind = "FeatureToggleWarning"
	KindInternal             ErrorKind = "Internal"
)

var (
	ErrInvalidPassword  = errors.New("password does not meet the complexity policy")
	ErrInvalidProject   = errors.New("invalid project")
	ErrInvalidPorts     = errors.New("invalid ports")
	ErrBootstrapTimeout = errors.New("timed out waiting for the runtime log marker")
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrIngestTimeout    = errors.New("timed out waiting for ingestion to complete")
	ErrProjectNotFound  = errors.New("project not found")
	ErrProjectExists    = errors.New("project already exists with a different configuration")
	ErrProjectLocked    = errors.New("project is locked by another invocation")
)

// DirectoryCreateError is returned when a project directory cannot be created
type DirectoryCreateError struct {
	Path string
	Err  error
}

func (e *DirectoryCreateError) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreateError) Unwrap() error { return e.Err }

// RuntimeLaunchError is returned when the container runtime could not be started or stopped
type RuntimeLaunchError struct {
	Operation string
	Err       error
}

func (e *RuntimeLaunchError) Error() string {
	return fmt.Sprintf("runtime %s failed: %v", e.Operation, e.Err)
}

func (e *RuntimeLaunchError) Unwrap() error { return e.Err }

// AuthenticationFailedError carries the rejected login response
type AuthenticationFailedError struct {
	StatusCode int
	Body       string
}

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("login rejected with status %d: %s", e.StatusCode, e.Body)
}

// UploadFailedError identifies the file that could not be uploaded
type UploadFailedError struct {
	File string
	Err  error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.File, e.Err)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// IngestFailedError is returned when the server reports a terminal failure for a batch
type IngestFailedError struct {
	BatchID int64
	Status  string
}

func (e *IngestFailedError) Error() string {
	return fmt.Sprintf("ingestion of batch %d ended with status %q", e.BatchID, e.Status)
}

// PortConflictError names the project already holding one of the requested ports
type PortConflictError struct {
	Project string
	Ports   []int
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("ports %v are already used by project %s", e.Ports, e.Project)
}

// ClearFailedError is returned when the clear-database call is rejected
type ClearFailedError struct {
	StatusCode int
	Body       string
}

func (e *ClearFailedError) Error() string {
	return fmt.Sprintf("clear database rejected with status %d: %s", e.StatusCode, e.Body)
}

// FeatureToggleWarning reports a failed, non-fatal feature flag change
type FeatureToggleWarning struct {
	Feature string
	Err     error
}

func (e *FeatureToggleWarning) Error() string {
	return fmt.Sprintf("could not enable feature %s: %v", e.Feature, e.Err)
}

func (e *FeatureToggleWarning) Unwrap() error { return e.Err }

// Kind maps an error chain to its ErrorKind
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var (
		dirErr     *DirectoryCreateError
		runtimeErr *RuntimeLaunchError
		authErr    *AuthenticationFailedError
		uploadErr  *UploadFailedError
		ingestErr  *IngestFailedError
		portErr    *PortConflictError
		clearErr   *ClearFailedError
		featureErr *FeatureToggleWarning
	)

	switch {
	case errors.Is(err, ErrInvalidPassword):
		return KindInvalidPassword
	case errors.Is(err, ErrInvalidProject):
		return KindInvalidProject
	case errors.Is(err, ErrInvalidPorts):
		return KindInvalidPorts
	case errors.As(err, &portErr):
		return KindPortConflict
	case errors.As(err, &dirErr):
		return KindDirectoryCreate
	case errors.As(err, &runtimeErr):
		return KindRuntimeLaunch
	case errors.Is(err, ErrBootstrapTimeout):
		return KindBootstrapTimeout
	case errors.As(err, &authErr):
		return KindAuthenticationFailed
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.As(err, &uploadErr):
		return KindUploadFailed
	case errors.As(err, &ingestErr):
		return KindIngestFailed
	case errors.Is(err, ErrIngestTimeout):
		return KindIngestTimeout
	case errors.Is(err, ErrProjectNotFound):
		return KindProjectNotFound
	case errors.Is(err, ErrProjectExists):
		return KindProjectExists
	case errors.Is(err, ErrProjectLocked):
		return KindProjectLocked
	case errors.As(err, &clearErr):
		return KindClearFailed
	case errors.As(err, &featureErr):
		return KindFeatureToggleWarning
	default:
		return KindInternal
	}
}

// FormatErrorForUser converts errors to short user-facing hints.
// This should only be called at the command level.
func FormatErrorForUser(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case KindInvalidPassword:
		return fmt.Sprintf("the password must be at least %d characters long and contain uppercase, lowercase, digit and symbol (%s) characters",
			MinPasswordLength, PasswordSymbols)
	case KindPortConflict, KindInvalidPorts:
		return "choose different ports with --bolt-port, --neo4j-port and --web-port"
	case KindBootstrapTimeout:
		return "the runtime did not become ready in time, check the project log for details"
	case KindAuthenticationFailed, KindUnauthenticated:
		return "BloodHound rejected the credentials"
	case KindProjectNotFound:
		return "project not found, run 'hound list' to see existing projects"
	case KindProjectExists:
		return "the project exists with different ports or plugins, delete it first or reuse its settings"
	case KindProjectLocked:
		return "another hound command is working on this project"
	case KindIngestTimeout:
		return "BloodHound is still ingesting, check the web interface"
	default:
		return ""
	}
}
