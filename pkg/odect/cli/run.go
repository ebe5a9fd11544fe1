//go:build cgo
// +build cgo

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/odect/odect/pkg/emissions"
	"github.com/odect/odect/pkg/entsoe"
	"github.com/odect/odect/pkg/odect/base"
	"github.com/odect/odect/pkg/odect/metrics"
	"github.com/odect/odect/pkg/pipeline"
	"github.com/odect/odect/pkg/sink"
	"github.com/odect/odect/pkg/store"
)

// run wires the components of one invocation.
type run struct {
	logger     *slog.Logger
	config     *OdectConfig
	metrics    *metrics.Metrics
	store      *store.Store
	aggregator *emissions.Aggregator
	sinks      []sink.Sink
}

func newRun(ctx context.Context, c *OdectAppConfig, logger *slog.Logger) (*run, error) {
	cfg := &c.Odect
	m := metrics.New()

	client, err := entsoe.New(&entsoe.Config{
		Logger:           logger.With("sub_system", "entsoe"),
		URL:              cfg.ENTSOE.URL,
		Token:            string(cfg.ENTSOE.Token),
		HTTPClientConfig: cfg.ENTSOE.HTTPClientConfig,
		Timeout:          time.Duration(cfg.ENTSOE.Timeout),
		MaxRetries:       cfg.ENTSOE.MaxRetries,
		CacheTTL:         time.Duration(cfg.ENTSOE.CacheTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ENTSO-E client: %w", err)
	}

	var sources []pipeline.ModelSource
	for _, s := range cfg.Models {
		sources = append(sources, pipeline.NewCSVModel(s.Column, s.File))
	}

	reconstructor, err := pipeline.New(&pipeline.Config{
		Logger:        logger.With("sub_system", "pipeline"),
		Metrics:       m,
		Target:        cfg.Target,
		Neighbours:    cfg.Neighbours,
		DropTypes:     cfg.DropTypes,
		NetGeneration: cfg.NetGeneration,
		Models:        sources,
	}, client)
	if err != nil {
		return nil, err
	}

	factors, err := emissions.LoadFactors(cfg.Emissions.FactorsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load emission factors: %w", err)
	}

	aggregator, err := emissions.New(&emissions.Config{
		Logger:  logger.With("sub_system", "emissions"),
		Factors: factors,
		Policy:  cfg.Emissions.UnknownTypes,
	})
	if err != nil {
		return nil, err
	}

	s, err := store.New(&store.Config{
		Logger:      logger.With("sub_system", "store"),
		Metrics:     m,
		Path:        cfg.Storage.Path,
		Precision:   cfg.Storage.Precision,
		Concurrency: cfg.Storage.Concurrency,
		Fetcher:     reconstructor,
	})
	if err != nil {
		return nil, err
	}

	sinks, err := sink.New(ctx, &cfg.Sinks, logger.With("sub_system", "sink"))
	if err != nil {
		s.Close()

		return nil, err
	}

	return &run{
		logger:     logger,
		config:     cfg,
		metrics:    m,
		store:      s,
		aggregator: aggregator,
		sinks:      sinks,
	}, nil
}

// execute fills the store for the days from..to and computes the emission
// series. The result is nil only when there is nothing to report.
func (r *run) execute(ctx context.Context, from, to time.Time) (*emissions.Result, []store.SeriesSummary, error) {
	var errs []error

	matrix, err := r.store.Ensure(ctx, from, to)
	if err != nil {
		r.logger.Error("Generation store not complete for the requested range", "err", err)
		errs = append(errs, err)
	}

	if matrix == nil || matrix.Len() == 0 {
		return nil, nil, errors.Join(append(errs, ErrNoData)...)
	}

	result, err := r.aggregator.Compute(matrix, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, nil, errors.Join(append(errs, err)...)
	}

	r.metrics.Finish(result.MeanAEF())

	if len(result.Skipped) > 0 {
		r.logger.Warn("Generation types without emission factor were left out", "types", result.Skipped)
	}

	batch := &sink.Batch{Zone: r.config.Target.Name, Matrix: matrix, Result: result}
	for _, s := range r.sinks {
		if err := s.Publish(ctx, batch); err != nil {
			r.logger.Error("Failed to publish results", "sink", s.Name(), "err", err)
			errs = append(errs, err)
		}
	}

	summaries, err := r.store.Summary(ctx, from, to)
	if err != nil {
		r.logger.Error("Failed to summarise stored generation", "err", err)
	}

	if r.config.Storage.BackupPath != "" {
		if err := r.backup(ctx); err != nil {
			r.logger.Error("Failed to back up DB", "err", err)
			errs = append(errs, err)
		}
	}

	r.logger.Info(
		"Run finished", "hours", result.Len(), "mean_aef_kg_per_mwh", result.MeanAEF(),
		"undefined_hours", result.Undefined,
	)

	return result, summaries, errors.Join(errs...)
}

// backup copies the DB into the backup directory.
func (r *run) backup(ctx context.Context) error {
	if err := os.MkdirAll(r.config.Storage.BackupPath, 0o700); err != nil {
		return err
	}

	name := fmt.Sprintf("%s-%s.bak.db", base.AppName, time.Now().UTC().Format("200601021504"))

	return r.store.Backup(ctx, filepath.Join(r.config.Storage.BackupPath, name))
}

func (r *run) close() {
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.logger.Error("Failed to close sink", "sink", s.Name(), "err", err)
		}
	}

	if err := r.store.Close(); err != nil {
		r.logger.Error("Failed to close DB", "err", err)
	}
}
