package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"manifest-relay/internal/config"
	"manifest-relay/internal/logger"
	"manifest-relay/internal/model"
	"manifest-relay/internal/relay"
	"manifest-relay/internal/storage"

	"github.com/rs/zerolog"
)

// JobSource yields queued run jobs.
type JobSource interface {
	ConsumeRuns(ctx context.Context, handler func(ctx context.Context, data []byte) error) error
}

type Runner interface {
	Run(ctx context.Context, data []byte, dest model.Destinations, nextDay bool, obs relay.Observer) error
}

type RunStore interface {
	Save(ctx context.Context, run model.Run) error
	Get(ctx context.Context, id string) (*model.Run, error)
}

// RelayWorker executes queued runs one after another so two manifests never
// write to the sink at the same time.
type RelayWorker struct {
	cfg     *config.Config
	storage storage.Storage
	source  JobSource
	runner  Runner
	store   RunStore
	log     zerolog.Logger
}

func NewRelayWorker(
	cfg *config.Config,
	storage storage.Storage,
	source JobSource,
	runner Runner,
	store RunStore,
) *RelayWorker {
	return &RelayWorker{
		cfg:     cfg,
		storage: storage,
		source:  source,
		runner:  runner,
		store:   store,
		log:     logger.Component("relay-worker"),
	}
}

func (w *RelayWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting relay worker")
	return w.source.ConsumeRuns(ctx, w.handleMessage)
}

func (w *RelayWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.RunJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal run job")
		return err
	}

	return w.processRun(ctx, job)
}

func (w *RelayWorker) processRun(ctx context.Context, job model.RunJob) error {
	log := w.log.With().Str("run_id", job.RunID).Str("s3_path", job.S3Path).Logger()
	log.Info().Bool("next_day", job.NextDay).Msg("Processing run")

	run := w.loadRun(ctx, job)
	obs := NewStatusObserver(ctx, w.store, run, log)

	data, err := w.download(ctx, job.S3Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch manifest")
		obs.Failed(err)
		return err
	}

	if err := w.runner.Run(ctx, data, w.cfg.Destinations(job.NextDay), job.NextDay, obs); err != nil {
		log.Error().Err(err).Msg("Run failed")
		return err
	}

	log.Info().Msg("Run completed")
	return nil
}

// loadRun picks up the record the API created, or starts a fresh one when
// the job was queued by other means.
func (w *RelayWorker) loadRun(ctx context.Context, job model.RunJob) model.Run {
	if existing, err := w.store.Get(ctx, job.RunID); err == nil {
		return *existing
	}
	return model.Run{
		ID:        job.RunID,
		FileName:  job.FileName,
		NextDay:   job.NextDay,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
}

func (w *RelayWorker) download(ctx context.Context, key string) ([]byte, error) {
	reader, err := w.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest data: %w", err)
	}
	return data, nil
}
