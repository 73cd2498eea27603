// Package ensemble drives many workers through the seed, build and scan
// cycle of an ETAS ensemble.
//
// The index range [0, n) is split into contiguous chunks before any worker
// starts, one chunk per worker. Catalog i is always seeded as index i and
// simulated from the stream (key, i, attempt), so the ensemble's content
// does not depend on the number of workers.
package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/seed"
)

const tracerName = "github.com/etas-sim/etas-sim/sim/ensemble"

// CatalogGenerator grows a seeded catalog and seals it.
type CatalogGenerator interface {
	Build(builder sim.CatalogBuilder, rng sim.RandomGenerator) error
}

// ConsumerFactory returns the consumers owned by one worker. It is called
// once per worker before the worker starts.
type ConsumerFactory func(worker int) []sim.Consumer

// Runner runs ensembles. Its fields are read-only during Run.
type Runner struct {
	Initializer seed.Initializer
	Generator   CatalogGenerator
	Consumers   ConsumerFactory
	Workers     int
	MaxRetries  int // rebuilds allowed per catalog after a simulation failure
	Key         sim.SimulationKey
	Layout      sim.Layout
}

// Summary describes a finished ensemble.
type Summary struct {
	Catalogs     int
	Ruptures     int64 // natural ruptures over all catalogs, seeds included
	Retries      int
	ResultCounts map[sim.ResultCode]int
	Elapsed      time.Duration
}

// Validate checks the runner configuration.
func (r *Runner) Validate() error {
	if r.Initializer == nil || r.Generator == nil || r.Consumers == nil {
		return sim.ConfigErrorf("ensemble: initializer, generator and consumer factory are required")
	}
	if r.Workers < 1 {
		return sim.ConfigErrorf("ensemble: workers must be positive, got %d", r.Workers)
	}
	if r.MaxRetries < 0 {
		return sim.ConfigErrorf("ensemble: max_retries must be non-negative, got %d", r.MaxRetries)
	}
	return nil
}

// Run builds and scans numCatalogs catalogs. Consumers are opened before a
// worker's first catalog and closed after its last, also on failure.
// Cancellation of ctx is observed between catalogs.
func (r *Runner) Run(ctx context.Context, numCatalogs int) (Summary, error) {
	if err := r.Validate(); err != nil {
		return Summary{}, err
	}
	if numCatalogs < 0 {
		return Summary{}, sim.ConfigErrorf("ensemble: catalog count must be non-negative, got %d", numCatalogs)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ensemble.Run", trace.WithAttributes(
		attribute.Int("ensemble.catalogs", numCatalogs),
		attribute.Int("ensemble.workers", r.Workers),
		attribute.Int64("ensemble.key", int64(r.Key)),
		attribute.String("ensemble.layout", r.Layout.String()),
	))
	defer span.End()

	start := time.Now()
	chunks := partition(numCatalogs, r.Workers)
	results := make([]workerResult, len(chunks))

	r.Initializer.BeginInitialization()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for id, c := range chunks {
		wk := &worker{
			id:        id,
			runner:    r,
			lo:        c.lo,
			hi:        c.hi,
			result:    &results[id],
			seeder:    r.Initializer.MakeSeeder(),
			catalog:   sim.NewCatalog(r.Layout),
			scanner:   sim.NewScanner(r.Consumers(id)...),
			simStream: sim.NewCatalogStream(r.Key, sim.SubsystemCatalog),
			scanRNG:   sim.NewCatalogStream(r.Key, sim.SubsystemSterile),
		}
		g.Go(func() error { return wk.run(gctx) })
	}
	err := g.Wait()
	r.Initializer.EndInitialization()

	sum := Summary{ResultCounts: make(map[sim.ResultCode]int), Elapsed: time.Since(start)}
	for i := range results {
		res := &results[i]
		sum.Catalogs += res.catalogs
		sum.Ruptures += res.ruptures
		sum.Retries += res.retries
		for rc, n := range res.resultCounts {
			if n > 0 {
				sum.ResultCounts[sim.ResultCode(rc)] += n
			}
		}
	}
	span.SetAttributes(
		attribute.Int("ensemble.completed", sum.Catalogs),
		attribute.Int("ensemble.retries", sum.Retries),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}
	logrus.Infof("ensemble: %d catalogs, %d ruptures, %d retries in %v",
		sum.Catalogs, sum.Ruptures, sum.Retries, sum.Elapsed)
	return sum, nil
}

type chunk struct{ lo, hi int }

// partition splits [0, n) into at most workers contiguous, non-empty chunks.
func partition(n, workers int) []chunk {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	chunks := make([]chunk, 0, workers)
	for lo := 0; lo < n; lo += size {
		chunks = append(chunks, chunk{lo: lo, hi: min(lo+size, n)})
	}
	return chunks
}

type workerResult struct {
	catalogs     int
	ruptures     int64
	retries      int
	resultCounts [3]int
}

type worker struct {
	id        int
	runner    *Runner
	lo, hi    int
	result    *workerResult
	seeder    seed.Seeder
	catalog   sim.CatalogBuilder
	scanner   *sim.Scanner
	simStream *sim.CatalogStream
	scanRNG   *sim.CatalogStream
}

func (w *worker) run(ctx context.Context) (err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "ensemble.worker", trace.WithAttributes(
		attribute.Int("worker.id", w.id),
		attribute.Int("worker.first", w.lo),
		attribute.Int("worker.end", w.hi),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	w.seeder.Open()
	defer w.seeder.Close()
	w.scanner.Open()
	defer w.scanner.Close()

	comm := seed.SeedContext{Builder: w.catalog}
	for i := w.lo; i < w.hi; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		comm.Index = i
		if err := w.buildOne(&comm); err != nil {
			return err
		}
		w.scanRNG.Reset(i, 0)
		w.scanner.Scan(w.catalog, w.scanRNG)

		w.result.catalogs++
		w.result.ruptures += int64(w.catalog.Size())
		w.result.resultCounts[w.catalog.ResultCode()]++
	}
	logrus.Debugf("ensemble: worker %d finished catalogs [%d, %d)", w.id, w.lo, w.hi)
	return nil
}

// buildOne seeds and simulates catalog comm.Index, rebuilding it from the
// next attempt's stream after each retryable failure.
func (w *worker) buildOne(comm *seed.SeedContext) error {
	for attempt := 0; ; attempt++ {
		if err := w.seeder.SeedCatalog(comm); err != nil {
			return fmt.Errorf("ensemble: seeding catalog %d: %w", comm.Index, err)
		}
		w.simStream.Reset(comm.Index, attempt)
		err := w.runner.Generator.Build(w.catalog, w.simStream)
		if err == nil {
			return nil
		}
		if !sim.IsRetryable(err) || attempt >= w.runner.MaxRetries {
			return fmt.Errorf("ensemble: catalog %d attempt %d: %w", comm.Index, attempt, err)
		}
		w.result.retries++
		logrus.Warnf("ensemble: catalog %d attempt %d failed, retrying: %v", comm.Index, attempt, err)
	}
}
