package db

import (
	"context"
	"time"

	"manifest-relay/internal/model"

	"github.com/rs/zerolog"
)

// LiveStore is the short-lived status store that answers progress queries.
type LiveStore interface {
	Save(ctx context.Context, run model.Run) error
	Get(ctx context.Context, id string) (*model.Run, error)
}

// ArchivingStore writes every status to the live store and copies runs that
// reached a final state into the history. History failures are only logged.
type ArchivingStore struct {
	live    LiveStore
	history Repository
	log     zerolog.Logger
}

func NewArchivingStore(live LiveStore, history Repository, log zerolog.Logger) *ArchivingStore {
	return &ArchivingStore{live: live, history: history, log: log}
}

func (s *ArchivingStore) Save(ctx context.Context, run model.Run) error {
	if err := s.live.Save(ctx, run); err != nil {
		return err
	}
	if run.Status.Done() {
		if run.UpdatedAt.IsZero() {
			run.UpdatedAt = time.Now().UTC()
		}
		if run.CreatedAt.IsZero() {
			run.CreatedAt = run.UpdatedAt
		}
		if err := s.history.RecordRun(ctx, run); err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to archive run")
		}
	}
	return nil
}

func (s *ArchivingStore) Get(ctx context.Context, id string) (*model.Run, error) {
	return s.live.Get(ctx, id)
}
