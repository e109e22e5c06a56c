package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oar-cd/hound/bloodhound"
	"github.com/oar-cd/hound/domain"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 30 * time.Minute
	DefaultPageSize     = 10

	statusComplete = "Complete"
)

// terminalFailures are batch status messages that will never turn into Complete
var terminalFailures = map[string]bool{
	"Failed":             true,
	"Canceled":           true,
	"Timed Out":          true,
	"Partially Complete": true,
}

var errNotComplete = errors.New("batch not complete yet")

// Uploader is the part of the BloodHound API used for ingestion
type Uploader interface {
	StartUpload(ctx context.Context) (int64, error)
	UploadFile(ctx context.Context, id int64, data []byte) error
	EndUpload(ctx context.Context, id int64) error
	ListUploads(ctx context.Context, skip, limit int) ([]bloodhound.Upload, error)
}

var _ Uploader = (*bloodhound.Client)(nil)

// Result describes a finished ingestion
type Result struct {
	Batch    domain.UploadBatch
	Duration time.Duration
}

// Pipeline uploads one archive as a single batch and waits for the server to ingest it
type Pipeline struct {
	client       Uploader
	PollInterval time.Duration
	Timeout      time.Duration
	PageSize     int

	// OnUploaded is called after each file has been accepted
	OnUploaded func(file string)
	// OnBatch is called once the batch id is known
	OnBatch func(id int64)
}

func NewPipeline(client Uploader) *Pipeline {
	return &Pipeline{
		client:       client,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
		PageSize:     DefaultPageSize,
	}
}

// Run extracts archivePath into stagingDir, uploads every data file and waits
// for the batch to complete. Success is all-or-nothing for the batch.
func (p *Pipeline) Run(ctx context.Context, archivePath, stagingDir string) (*Result, error) {
	started := time.Now()

	files, err := Extract(archivePath, stagingDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("archive %s contains no %s files", archivePath, DataExtension)
	}

	batch := domain.UploadBatch{Status: domain.BatchStatusPending}

	batch.ID, err = p.client.StartUpload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start upload batch: %w", err)
	}
	if p.OnBatch != nil {
		p.OnBatch(batch.ID)
	}

	for _, file := range files {
		name := filepath.Base(file)

		data, err := ReadData(file)
		if err != nil {
			return nil, &domain.UploadFailedError{File: name, Err: err}
		}
		if err := p.client.UploadFile(ctx, batch.ID, data); err != nil {
			return nil, &domain.UploadFailedError{File: name, Err: err}
		}

		batch.Files = append(batch.Files, name)
		slog.Debug("File uploaded",
			"layer", "ingest",
			"operation", "upload_file",
			"batch_id", batch.ID,
			"file", name)
		if p.OnUploaded != nil {
			p.OnUploaded(name)
		}
	}

	if err := p.client.EndUpload(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("failed to close upload batch %d: %w", batch.ID, err)
	}

	if err := p.waitComplete(ctx, batch.ID); err != nil {
		return &Result{Batch: batch, Duration: time.Since(started)}, err
	}

	batch.Status = domain.BatchStatusComplete
	return &Result{Batch: batch, Duration: time.Since(started)}, nil
}

func (p *Pipeline) waitComplete(ctx context.Context, batchID int64) error {
	pollCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	poll := func() error {
		uploads, err := p.client.ListUploads(pollCtx, 0, p.PageSize)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				return backoff.Permanent(err)
			}
			return err
		}

		for _, u := range uploads {
			if u.ID != batchID {
				continue
			}
			if u.StatusMessage == statusComplete {
				return nil
			}
			if terminalFailures[u.StatusMessage] {
				return backoff.Permanent(&domain.IngestFailedError{BatchID: batchID, Status: u.StatusMessage})
			}
			return fmt.Errorf("%w: %s", errNotComplete, u.StatusMessage)
		}
		return errNotComplete
	}

	notify := func(err error, next time.Duration) {
		slog.Debug("Waiting for ingestion",
			"layer", "ingest",
			"operation", "wait_complete",
			"batch_id", batchID,
			"reason", err,
			"next_poll", next)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.PollInterval), pollCtx)
	err := backoff.RetryNotify(poll, b, notify)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: batch %d after %s", domain.ErrIngestTimeout, batchID, p.Timeout)
	default:
		return err
	}
}
