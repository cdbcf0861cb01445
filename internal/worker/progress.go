package worker

import (
	"context"

	"manifest-relay/internal/model"
	"manifest-relay/internal/relay"

	"github.com/rs/zerolog"
)

// StatusObserver mirrors relay events into the run store. Store errors are
// logged and never interrupt the upload.
type StatusObserver struct {
	ctx   context.Context
	store RunStore
	run   model.Run
	log   zerolog.Logger
}

func NewStatusObserver(ctx context.Context, store RunStore, run model.Run, log zerolog.Logger) *StatusObserver {
	return &StatusObserver{
		// final states must still be written after a cancellation
		ctx:   context.WithoutCancel(ctx),
		store: store,
		run:   run,
		log:   log,
	}
}

func (o *StatusObserver) Started(total int) {
	o.run.Status = model.RunStatusRunning
	o.run.Total = total
	o.save()
}

func (o *StatusObserver) Progress(p relay.Progress) {
	o.run.Sent = p.Sent
	o.run.Total = p.Total
	o.run.Percent = p.Percent
	o.save()
}

func (o *StatusObserver) Completed(total int) {
	o.run.Status = model.RunStatusCompleted
	o.run.Sent = total
	o.run.Total = total
	o.run.Percent = 100
	o.save()
}

func (o *StatusObserver) Failed(err error) {
	o.run.Status = model.RunStatusFailed
	o.run.ErrorMessage = err.Error()
	o.save()
}

func (o *StatusObserver) save() {
	if err := o.store.Save(o.ctx, o.run); err != nil {
		o.log.Warn().Err(err).Str("status", string(o.run.Status)).Msg("Failed to record run status")
	}
}
