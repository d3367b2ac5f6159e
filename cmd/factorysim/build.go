package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/config"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/facility"
	"factorysim.ai/internal/sim/tuning"
	"factorysim.ai/internal/sim/world"
)

// yard is everything a world is built from.
type yard struct {
	cats   *catalogs.Catalogs
	tune   tuning.Tuning
	layout world.Layout
}

func loadYard(cfg config.Config, log zerolog.Logger) (yard, error) {
	cats, err := catalogs.Load(cfg.ConfigsDir)
	if err != nil {
		return yard{}, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return yard{}, fmt.Errorf("load tuning: %w", err)
		}
		log.Warn().Str("path", cfg.TuningPath).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}
	layout, err := world.LoadLayout(cfg.LayoutPath)
	if err != nil {
		return yard{}, fmt.Errorf("load layout: %w", err)
	}
	return yard{cats: cats, tune: tune, layout: layout}, nil
}

func (y yard) newWorld(id, runID string, saver facility.Saver, sink world.MetricsSink, log zerolog.Logger) (*world.World, error) {
	return world.New(world.WorldConfig{ID: id, RunID: runID, Tuning: y.tune}, world.Deps{
		Catalogs: y.cats,
		Saver:    saver,
		Sink:     sink,
		Log:      log,
	}, y.layout)
}

type multiTickLogger []world.TickLogger

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errs []error
	for _, l := range m {
		if err := l.WriteTick(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type multiAuditLogger []world.AuditLogger

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	var errs []error
	for _, l := range m {
		if err := l.WriteAudit(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
