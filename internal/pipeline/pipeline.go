// Package pipeline wires decoding, cleaning, ordering and relaying of one
// manifest workbook.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"manifest-relay/internal/config"
	"manifest-relay/internal/excel"
	"manifest-relay/internal/logger"
	"manifest-relay/internal/manifest"
	"manifest-relay/internal/model"
	"manifest-relay/internal/relay"
	"manifest-relay/pkg/errors"

	"github.com/rs/zerolog"
)

// Relayer sends prepared batches.
type Relayer interface {
	Upload(ctx context.Context, batches []model.Batch, obs relay.Observer) error
}

type Pipeline struct {
	decoder        excel.Decoder
	cleaner        *manifest.Cleaner
	relayer        Relayer
	pickupKeyword  string
	dropoffKeyword string
	rng            manifest.RandSource
	log            zerolog.Logger
}

type Option func(*Pipeline)

// WithRand fixes the pivot source, mostly for tests.
func WithRand(rng manifest.RandSource) Option {
	return func(p *Pipeline) { p.rng = rng }
}

func New(cfg config.ManifestConfig, decoder excel.Decoder, relayer Relayer, opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder:        decoder,
		cleaner:        manifest.NewCleaner(cfg.ValidationColumn, cfg.LocationCodes),
		relayer:        relayer,
		pickupKeyword:  cfg.PickupKeyword,
		dropoffKeyword: cfg.DropoffKeyword,
		log:            logger.Component("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig builds the production pipeline: excelize decoding and the
// multipart sink client.
func NewFromConfig(cfg *config.Config) *Pipeline {
	client := relay.NewClient(cfg.Sink.Timeout)
	return New(
		cfg.Manifest,
		excel.NewParser(cfg.Manifest.HeaderRow),
		relay.NewUploader(client, cfg.Sink.RowDelay),
	)
}

// Run processes one workbook end to end. Format and decode problems are
// reported before any row is sent.
func (p *Pipeline) Run(ctx context.Context, data []byte, dest model.Destinations, nextDay bool, obs relay.Observer) error {
	if obs == nil {
		obs = relay.NopObserver{}
	}

	batches, err := p.Prepare(ctx, data, dest, nextDay)
	if err != nil {
		p.log.Error().Err(err).Bool("next_day", nextDay).Msg("Failed to prepare manifest")
		obs.Failed(err)
		return err
	}

	return p.relayer.Upload(ctx, batches, obs)
}

// Prepare decodes, cleans, keys and orders the workbook into one batch per
// category, pickups first.
func (p *Pipeline) Prepare(ctx context.Context, data []byte, dest model.Destinations, nextDay bool) ([]model.Batch, error) {
	for _, c := range model.Categories {
		if dest.For(c) == "" {
			return nil, fmt.Errorf("no %s destination configured", c)
		}
	}

	wb, err := p.decoder.Parse(ctx, data)
	if err != nil {
		return nil, err
	}

	if err := p.checkSheets(wb.SheetNames()); err != nil {
		return nil, err
	}

	run := manifest.NewRun()
	for _, sheet := range wb.Sheets {
		for _, c := range p.categoriesOf(sheet.Name) {
			if err := p.cleaner.ValidateSheet(sheet.Name, sheet.Rows); err != nil {
				return nil, err
			}
			cleaned := p.cleaner.CleanAll(sheet.Rows, c, nextDay)
			run.Assign(c, cleaned)

			p.log.Debug().
				Str("sheet", sheet.Name).
				Str("category", string(c)).
				Int("rows", len(cleaned)).
				Msg("Sheet processed")
		}
	}

	batches := make([]model.Batch, 0, len(model.Categories))
	for _, c := range model.Categories {
		batches = append(batches, model.Batch{
			Category:    c,
			Destination: dest.For(c),
			Rows:        manifest.Order(run.Rows(c), p.rng),
			Marker:      model.SortMarker(),
		})
	}

	p.log.Info().
		Int("pickups", run.Count(model.CategoryPickup)).
		Int("dropoffs", run.Count(model.CategoryDropoff)).
		Bool("next_day", nextDay).
		Msg("Manifest prepared")

	return batches, nil
}

func (p *Pipeline) checkSheets(names []string) error {
	var hasPickup, hasDropoff bool
	for _, name := range names {
		hasPickup = hasPickup || strings.Contains(name, p.pickupKeyword)
		hasDropoff = hasDropoff || strings.Contains(name, p.dropoffKeyword)
	}

	var missing []string
	if !hasPickup {
		missing = append(missing, fmt.Sprintf("%q", p.pickupKeyword))
	}
	if !hasDropoff {
		missing = append(missing, fmt.Sprintf("%q", p.dropoffKeyword))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %w: no sheet named like %s",
			errors.ErrInvalidFileFormat, errors.ErrMissingSheet, strings.Join(missing, " or "))
	}
	return nil
}

// categoriesOf matches a sheet name by substring. A name holding both
// keywords feeds both categories.
func (p *Pipeline) categoriesOf(sheet string) []model.Category {
	var out []model.Category
	if strings.Contains(sheet, p.pickupKeyword) {
		out = append(out, model.CategoryPickup)
	}
	if strings.Contains(sheet, p.dropoffKeyword) {
		out = append(out, model.CategoryDropoff)
	}
	return out
}
