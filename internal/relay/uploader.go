package relay

import (
	"context"
	"fmt"
	"time"

	"manifest-relay/internal/logger"
	"manifest-relay/internal/model"
	"manifest-relay/pkg/errors"

	"github.com/rs/zerolog"
)

type Progress struct {
	Category model.Category
	Sent     int
	Total    int
	Percent  int
}

// Observer receives run lifecycle events. Calls happen on the uploading
// goroutine, one at a time.
type Observer interface {
	Started(total int)
	Progress(p Progress)
	Completed(total int)
	Failed(err error)
}

type NopObserver struct{}

func (NopObserver) Started(int)       {}
func (NopObserver) Progress(Progress) {}
func (NopObserver) Completed(int)     {}
func (NopObserver) Failed(error)      {}

// Uploader relays batches strictly one row at a time and stops at the first
// row the sink does not accept. Rows before that point stay delivered.
type Uploader struct {
	sink  Sink
	delay time.Duration
	log   zerolog.Logger
}

func NewUploader(sink Sink, delay time.Duration) *Uploader {
	return &Uploader{
		sink:  sink,
		delay: delay,
		log:   logger.Component("uploader"),
	}
}

func (u *Uploader) Upload(ctx context.Context, batches []model.Batch, obs Observer) error {
	if obs == nil {
		obs = NopObserver{}
	}

	total := 0
	for _, b := range batches {
		total += b.Len()
	}

	u.log.Info().Int("total_rows", total).Int("batches", len(batches)).Msg("Starting upload")
	obs.Started(total)

	sent := 0
	for _, batch := range batches {
		log := u.log.With().
			Str("category", string(batch.Category)).
			Str("destination", batch.Destination).
			Logger()

		for key := 0; key < batch.Len(); key++ {
			row := batch.Marker
			if key < len(batch.Rows) {
				row = batch.Rows[key]
			}

			if err := u.wait(ctx, sent); err != nil {
				err = fmt.Errorf("%w after %d of %d rows: %w", errors.ErrRunCancelled, sent, total, err)
				log.Warn().Err(err).Msg("Upload cancelled")
				obs.Failed(err)
				return err
			}

			log.Debug().Int("row", sent+1).Int("total", total).Int("key", key).Msg("Uploading row")

			if err := u.sink.Send(ctx, batch.Destination, row); err != nil {
				relayErr := errors.RelayError{
					Category: string(batch.Category),
					Row:      sent + 1,
					Key:      key,
					Err:      err,
				}
				log.Error().Err(err).Int("row", sent+1).Int("key", key).Msg("Upload stopped")
				obs.Failed(relayErr)
				return relayErr
			}

			sent++
			obs.Progress(Progress{
				Category: batch.Category,
				Sent:     sent,
				Total:    total,
				Percent:  sent * 100 / total,
			})
		}
	}

	u.log.Info().Int("total_rows", total).Msg("Upload complete")
	obs.Completed(total)
	return nil
}

// wait applies the inter-row delay and checks for cancellation.
func (u *Uploader) wait(ctx context.Context, sent int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.delay <= 0 || sent == 0 {
		return nil
	}

	timer := time.NewTimer(u.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
