// Package project drives the lifecycle of BloodHound projects.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oar-cd/hound/bloodhound"
	"github.com/oar-cd/hound/config"
	"github.com/oar-cd/hound/docker"
	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/ingest"
	"github.com/oar-cd/hound/logscan"
	"github.com/oar-cd/hound/repository"
	"github.com/oar-cd/hound/state"
	"github.com/oar-cd/hound/templates"
)

// generatedPasswordLength is used when the operator does not pick a password
const generatedPasswordLength = 16

// ProjectService provides project lifecycle operations. Every operation holds
// the project's advisory lock for its whole duration.
type ProjectService struct {
	store               *state.Store
	locker              *state.Locker
	projectRepository   repository.ProjectRepository
	ingestionRepository repository.IngestionRepository
	statusReader        docker.StatusReader
	scanner             *logscan.Scanner
	newRuntime          RuntimeFactory
	newSession          SessionFactory
	config              *config.Config
}

// Ensure ProjectService implements ProjectManager
var _ ProjectManager = (*ProjectService)(nil)

type Option func(*ProjectService)

// WithRuntimeFactory replaces the docker compose runner
func WithRuntimeFactory(f RuntimeFactory) Option {
	return func(s *ProjectService) { s.newRuntime = f }
}

// WithSessionFactory replaces the BloodHound API client
func WithSessionFactory(f SessionFactory) Option {
	return func(s *ProjectService) { s.newSession = f }
}

// WithStatusReader sets where List and Show read container status from.
// Without one the runtime status is reported as unknown.
func WithStatusReader(r docker.StatusReader) Option {
	return func(s *ProjectService) { s.statusReader = r }
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	store *state.Store,
	locker *state.Locker,
	projectRepository repository.ProjectRepository,
	ingestionRepository repository.IngestionRepository,
	cfg *config.Config,
	opts ...Option,
) *ProjectService {
	s := &ProjectService{
		store:               store,
		locker:              locker,
		projectRepository:   projectRepository,
		ingestionRepository: ingestionRepository,
		scanner:             logscan.NewScanner(cfg.LogPollInterval),
		config:              cfg,
	}
	s.newRuntime = func(p *domain.Project) docker.ComposeRunner {
		return docker.NewComposeProject(p, cfg)
	}
	s.newSession = func(p *domain.Project) SessionClient {
		return bloodhound.NewClient(p.BaseURL(),
			bloodhound.WithUserAgent("hound/"+config.Version),
			bloodhound.WithTimeout(cfg.RequestTimeout))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProjectService) List(ctx context.Context) ([]*ProjectInfo, error) {
	projects, err := s.projectRepository.List()
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "list_projects",
			"error", err)
		return nil, err
	}

	infos := make([]*ProjectInfo, len(projects))
	for i, p := range projects {
		infos[i] = &ProjectInfo{Project: p, Runtime: s.runtimeStatus(ctx, p)}
	}
	return infos, nil
}

// Show returns the snapshot of a project, its runtime status and its ingestion history
func (s *ProjectService) Show(ctx context.Context, name string) (*ProjectInfo, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	p, err := s.store.Load(name)
	if err != nil {
		return nil, err
	}

	info := &ProjectInfo{Project: p, Runtime: s.runtimeStatus(ctx, p)}

	ingestions, err := s.ingestionRepository.ListByProject(name)
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		slog.Warn("Project missing from registry",
			"layer", "service",
			"operation", "show_project",
			"project_name", name)
	case err != nil:
		return nil, err
	default:
		info.Ingestions = ingestions
	}
	return info, nil
}

// Start takes a project from nothing to Ready. A project that already went
// through bootstrap is relaunched with its saved settings instead.
func (s *ProjectService) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	result := &StartResult{}

	if err := domain.ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if err := opts.Ports.Validate(); err != nil {
		return nil, err
	}
	if opts.Password == "" {
		password, err := domain.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return nil, err
		}
		opts.Password = password
		result.GeneratedPassword = true
	}
	if err := domain.ValidatePassword(opts.Password); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.config.BootstrapTimeout
	}

	lock, err := s.locker.Acquire(opts.Name)
	if err != nil {
		return nil, err
	}
	defer s.release(lock, opts.Name)

	if err := s.checkPortConflict(opts.Name, opts.Ports); err != nil {
		return nil, err
	}

	requested := domain.NewProject(opts.Name, s.store.SourceDir(), opts.Ports, opts.Password, opts.Timeout, opts.NoGDS)

	existing, err := s.store.Load(opts.Name)
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
	case err != nil:
		return nil, err
	case existing.State >= domain.StateAuthenticated && existing.State != domain.StateDeleted:
		if !existing.SameRuntimeConfig(requested) {
			return nil, fmt.Errorf("%w: %s uses ports %v and no-gds=%t",
				domain.ErrProjectExists, existing.Name, existing.Ports.List(), existing.NoGDS)
		}
		if !result.GeneratedPassword && opts.Password != existing.Password {
			return nil, fmt.Errorf("%w: %s was started with another password", domain.ErrProjectExists, existing.Name)
		}
		result.GeneratedPassword = false
		if err := s.resume(ctx, existing); err != nil {
			return nil, s.logFailure("resume_project", existing, err)
		}
		result.Project = existing
		result.Resumed = true
		return result, nil
	default:
		// Bootstrap never finished, go through it again
		if !existing.SameRuntimeConfig(requested) {
			return nil, fmt.Errorf("%w: %s uses ports %v and no-gds=%t",
				domain.ErrProjectExists, existing.Name, existing.Ports.List(), existing.NoGDS)
		}
		requested.CreatedAt = existing.CreatedAt

		// The operator password may already be set, the initial one is then never printed again
		if existing.State == domain.StateBootstrapPending && (result.GeneratedPassword || opts.Password == existing.Password) {
			warnings, recovered, err := s.recoverRotated(ctx, existing)
			if err != nil {
				return nil, s.logFailure("start_project", existing, err)
			}
			if recovered {
				result.GeneratedPassword = false
				result.Project = existing
				result.Resumed = true
				result.Warnings = warnings
				return result, nil
			}
		}

		slog.Info("Restarting incomplete bootstrap",
			"layer", "service",
			"operation", "start_project",
			"project_name", existing.Name,
			"previous_state", existing.State.String())
	}

	warnings, err := s.bootstrap(ctx, requested)
	if err != nil {
		return nil, s.logFailure("start_project", requested, err)
	}
	result.Project = requested
	result.Warnings = warnings
	return result, nil
}

func (s *ProjectService) bootstrap(ctx context.Context, p *domain.Project) ([]error, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	if err := os.MkdirAll(p.Dir(), 0o755); err != nil {
		return nil, &domain.DirectoryCreateError{Path: p.Dir(), Err: err}
	}
	if err := templates.Write(p); err != nil {
		return nil, err
	}
	if err := s.transition(p, domain.StateConfigWritten); err != nil {
		return nil, err
	}

	if err := s.newRuntime(p).Up(ctx, p.LogPath()); err != nil {
		return nil, err
	}
	if err := s.transition(p, domain.StateRuntimeStarting); err != nil {
		return nil, err
	}

	secret, err := s.scanner.AwaitSecret(ctx, p.LogPath(), s.config.BootstrapPrefix, s.config.BootstrapSuffix, p.Timeout)
	if err != nil {
		return nil, err
	}
	if err := s.transition(p, domain.StateBootstrapPending); err != nil {
		return nil, err
	}
	if err := s.scanner.AwaitMarker(ctx, p.LogPath(), s.config.ReadyMarker, s.config.ReadyTimeout); err != nil {
		return nil, err
	}

	session := s.newSession(p)
	if _, err := session.Login(ctx, s.config.AdminUsername, secret); err != nil {
		return nil, err
	}
	userID, err := session.GetSelf(ctx)
	if err != nil {
		return nil, err
	}
	if err := session.RotatePassword(ctx, userID, secret, p.Password); err != nil {
		return nil, fmt.Errorf("failed to set operator password: %w", err)
	}
	// The bootstrap secret is gone now, prove the operator password works
	token, err := session.Login(ctx, s.config.AdminUsername, p.Password)
	if err != nil {
		return nil, err
	}
	p.UserID = userID
	p.SessionToken = token
	if err := s.transition(p, domain.StateAuthenticated); err != nil {
		return nil, err
	}

	return s.finishBootstrap(ctx, p, session)
}

// finishBootstrap turns on the feature flag of an Authenticated project and marks it Ready
func (s *ProjectService) finishBootstrap(ctx context.Context, p *domain.Project, session SessionClient) ([]error, error) {
	var warnings []error
	if err := session.EnableFeature(ctx, s.config.FeatureFlagKey); err != nil {
		slog.Warn("Feature toggle failed",
			"layer", "service",
			"operation", "enable_feature",
			"project_name", p.Name,
			"feature", s.config.FeatureFlagKey,
			"error", err)
		warnings = append(warnings, err)
	}

	if err := s.transition(p, domain.StateReady); err != nil {
		return nil, err
	}

	slog.Info("Project ready",
		"layer", "service",
		"operation", "start_project",
		"project_name", p.Name,
		"url", p.BaseURL())
	return warnings, nil
}

// recoverRotated finishes a bootstrap that was interrupted after the operator
// password had been set. It reports false when BloodHound rejects that
// password, meaning the rotation never happened.
func (s *ProjectService) recoverRotated(ctx context.Context, p *domain.Project) ([]error, bool, error) {
	if err := s.ensureRunning(ctx, p); err != nil {
		return nil, false, err
	}

	session := s.newSession(p)
	token, err := session.Login(ctx, s.config.AdminUsername, p.Password)
	var authErr *domain.AuthenticationFailedError
	switch {
	case errors.As(err, &authErr):
		slog.Debug("Operator password not set yet",
			"layer", "service",
			"operation", "start_project",
			"project_name", p.Name)
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	userID, err := session.GetSelf(ctx)
	if err != nil {
		return nil, false, err
	}
	p.UserID = userID
	p.SessionToken = token
	if err := s.transition(p, domain.StateAuthenticated); err != nil {
		return nil, false, err
	}

	slog.Info("Recovered interrupted bootstrap",
		"layer", "service",
		"operation", "start_project",
		"project_name", p.Name)
	warnings, err := s.finishBootstrap(ctx, p, session)
	return warnings, err == nil, err
}

// ensureRunning relaunches the runtime unless Docker reports it running
func (s *ProjectService) ensureRunning(ctx context.Context, p *domain.Project) error {
	if s.runtimeStatus(ctx, p) == domain.RuntimeStatusRunning {
		return nil
	}
	// Files may have been edited or removed since the last start
	if err := templates.Write(p); err != nil {
		return err
	}
	if err := s.newRuntime(p).Up(ctx, p.LogPath()); err != nil {
		return err
	}
	return s.scanner.AwaitMarker(ctx, p.LogPath(), s.config.ReadyMarker, s.config.ReadyTimeout)
}

// resume brings an already bootstrapped project back to Ready
func (s *ProjectService) resume(ctx context.Context, p *domain.Project) error {
	if err := s.ensureRunning(ctx, p); err != nil {
		return err
	}

	session := s.newSession(p)
	token, err := session.Login(ctx, s.config.AdminUsername, p.Password)
	if err != nil {
		return err
	}
	userID, err := session.GetSelf(ctx)
	if err != nil {
		return err
	}
	p.UserID = userID
	p.SessionToken = token

	return s.transition(p, domain.StateReady)
}

// Data uploads the JSON files of a collector archive as one batch and waits for ingestion
func (s *ProjectService) Data(ctx context.Context, opts DataOptions) (*ingest.Result, error) {
	lock, p, err := s.lockExisting(opts.Name)
	if err != nil {
		return nil, err
	}
	defer s.release(lock, opts.Name)
	if err := requireRunning(p); err != nil {
		return nil, err
	}

	archivePath, err := filepath.Abs(opts.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("invalid archive path: %w", err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("cannot read archive: %w", err)
	}

	session, err := s.authenticate(ctx, p)
	if err != nil {
		return nil, s.logFailure("ingest_data", p, err)
	}

	record := domain.NewIngestion(p.Name, archivePath)
	if err := s.ingestionRepository.Create(&record); err != nil {
		return nil, fmt.Errorf("failed to record ingestion: %w", err)
	}

	pipeline := ingest.NewPipeline(session)
	pipeline.PollInterval = s.config.IngestPollInterval
	pipeline.Timeout = s.config.IngestTimeout
	pipeline.PageSize = s.config.IngestPageSize
	pipeline.OnBatch = func(id int64) { record.BatchID = id }
	pipeline.OnUploaded = opts.OnUploaded

	stagingDir := filepath.Join(s.config.TmpDir, p.Name+"-ingest")
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			slog.Warn("Failed to remove staging directory", "path", stagingDir, "error", err)
		}
	}()

	result, runErr := pipeline.Run(ctx, archivePath, stagingDir)

	finished := time.Now()
	record.FinishedAt = &finished
	if result != nil {
		record.FileCount = len(result.Batch.Files)
	}
	if runErr != nil {
		record.Status = domain.BatchStatusFailed
		record.Message = runErr.Error()
	} else {
		record.Status = domain.BatchStatusComplete
	}
	if err := s.ingestionRepository.Update(&record); err != nil {
		slog.Warn("Failed to update ingestion record",
			"layer", "service",
			"operation", "ingest_data",
			"project_name", p.Name,
			"error", err)
	}

	if runErr != nil {
		return result, s.logFailure("ingest_data", p, runErr)
	}

	if p.State == domain.StateCleared {
		if err := s.transition(p, domain.StateReady); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Clear wipes the collected graph data while the instance keeps running
func (s *ProjectService) Clear(ctx context.Context, name string) error {
	lock, p, err := s.lockExisting(name)
	if err != nil {
		return err
	}
	defer s.release(lock, name)
	if err := requireRunning(p); err != nil {
		return err
	}

	session, err := s.authenticate(ctx, p)
	if err != nil {
		return s.logFailure("clear_project", p, err)
	}
	if err := session.ClearDatabase(ctx); err != nil {
		return s.logFailure("clear_project", p, err)
	}

	return s.transition(p, domain.StateCleared)
}

// Stop shuts the runtime down and keeps every file
func (s *ProjectService) Stop(ctx context.Context, name string) error {
	lock, p, err := s.lockExisting(name)
	if err != nil {
		return err
	}
	defer s.release(lock, name)

	output, err := s.newRuntime(p).Down(ctx, false)
	if err != nil {
		return s.logFailure("stop_project", p, err)
	}
	slog.Debug("Runtime stopped",
		"layer", "service",
		"operation", "stop_project",
		"project_name", p.Name,
		"output", output)

	return s.transition(p, domain.StateStopped)
}

// Delete tears the runtime down, waits for it to release its resources and
// removes the project directory and registry entry. A project without a
// snapshot is reported as not found and nothing is touched.
func (s *ProjectService) Delete(ctx context.Context, name string) error {
	lock, p, err := s.lockExisting(name)
	if err != nil {
		return err
	}
	defer s.release(lock, name)

	// Volumes go too, a later start under the same name must bootstrap from scratch
	output, err := s.newRuntime(p).Down(ctx, true)
	if err != nil {
		return s.logFailure("delete_project", p, err)
	}
	slog.Debug("Runtime removed",
		"layer", "service",
		"operation", "delete_project",
		"project_name", p.Name,
		"output", output)

	if err := wait(ctx, s.config.DeleteGracePeriod); err != nil {
		return err
	}

	var result *multierror.Error
	if err := s.store.RemoveProject(p.Name); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.projectRepository.Delete(p.Name); err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
		result = multierror.Append(result, fmt.Errorf("failed to remove registry entry: %w", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return s.logFailure("delete_project", p, err)
	}

	p.State = domain.StateDeleted
	slog.Info("Project deleted",
		"layer", "service",
		"operation", "delete_project",
		"project_name", p.Name)
	return nil
}

// lockExisting validates name, makes sure the project has a snapshot and
// locks it. A missing project fails before the lock file is created.
func (s *ProjectService) lockExisting(name string) (*state.Lock, *domain.Project, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, nil, err
	}
	if _, err := s.store.Load(name); err != nil {
		return nil, nil, err
	}

	lock, err := s.locker.Acquire(name)
	if err != nil {
		return nil, nil, err
	}

	// Another invocation may have changed the snapshot before we got the lock
	p, err := s.store.Load(name)
	if err != nil {
		s.release(lock, name)
		return nil, nil, err
	}
	return lock, p, nil
}

// authenticate logs in with the operator password and keeps the new token in p
func (s *ProjectService) authenticate(ctx context.Context, p *domain.Project) (SessionClient, error) {
	session := s.newSession(p)
	token, err := session.Login(ctx, s.config.AdminUsername, p.Password)
	if err != nil {
		return nil, err
	}
	p.SessionToken = token
	return session, nil
}

// transition moves p to a new state and persists it to the snapshot and the registry
func (s *ProjectService) transition(p *domain.Project, to domain.LifecycleState) error {
	from := p.State
	p.State = to
	p.UpdatedAt = time.Now()

	// The registry settles the timestamps, the snapshot records them
	if err := s.projectRepository.Save(p); err != nil {
		return fmt.Errorf("failed to update registry: %w", err)
	}
	if err := s.store.Save(p); err != nil {
		return err
	}

	slog.Debug("Project state changed",
		"layer", "service",
		"operation", "transition",
		"project_name", p.Name,
		"from", from.String(),
		"to", to.String())
	return nil
}

func (s *ProjectService) checkPortConflict(name string, ports domain.Ports) error {
	other, shared, err := s.projectRepository.FindPortConflict(name, ports)
	if err != nil {
		return fmt.Errorf("failed to check ports: %w", err)
	}
	if other != nil {
		return &domain.PortConflictError{Project: other.Name, Ports: shared}
	}
	return nil
}

func (s *ProjectService) runtimeStatus(ctx context.Context, p *domain.Project) domain.RuntimeStatus {
	if s.statusReader == nil {
		return domain.RuntimeStatusUnknown
	}
	status, err := s.statusReader.ProjectStatus(ctx, p.ComposeName())
	if err != nil {
		slog.Debug("Runtime status unavailable",
			"layer", "service",
			"operation", "runtime_status",
			"project_name", p.Name,
			"error", err)
		return domain.RuntimeStatusUnknown
	}
	return status
}

func (s *ProjectService) release(lock *state.Lock, name string) {
	if err := lock.Release(); err != nil {
		slog.Warn("Failed to release project lock", "project_name", name, "error", err)
	}
}

func (s *ProjectService) logFailure(operation string, p *domain.Project, err error) error {
	slog.Error("Service operation failed",
		"layer", "service",
		"operation", operation,
		"project_name", p.Name,
		"state", p.State.String(),
		"error", err)
	return err
}

// requireRunning rejects projects whose instance is not expected to answer API calls
func requireRunning(p *domain.Project) error {
	switch p.State {
	case domain.StateReady, domain.StateCleared:
		return nil
	case domain.StateStopped:
		return fmt.Errorf("%w: project %s is stopped, run 'hound start %s' first", domain.ErrInvalidProject, p.Name, p.Name)
	default:
		return fmt.Errorf("%w: project %s never finished starting (state %s)", domain.ErrInvalidProject, p.Name, p.State)
	}
}

// wait sleeps for d unless ctx is cancelled first
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
