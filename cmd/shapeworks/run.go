package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniel-perry/shapeworks"
	"github.com/daniel-perry/shapeworks/config"
	"github.com/daniel-perry/shapeworks/domain"
	"github.com/daniel-perry/shapeworks/dual"
	"github.com/daniel-perry/shapeworks/logging"
	"github.com/daniel-perry/shapeworks/metrics"
	"github.com/daniel-perry/shapeworks/psys"
	"github.com/daniel-perry/shapeworks/queue"
	"github.com/daniel-perry/shapeworks/solver"
	"github.com/daniel-perry/shapeworks/terms"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"
)

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New(cfg.Log)
	defer log.Sync()

	sys := buildSystem(cfg)
	fn := buildFunction(cfg, log)

	opts := []solver.Option{
		solver.Workers(cfg.Optimizer.Workers),
		solver.TimeStep(cfg.Optimizer.TimeStep),
		solver.StepBounds(cfg.Optimizer.MinStep, cfg.Optimizer.MaxStep),
		solver.Growth(cfg.Optimizer.Growth),
		solver.Logger(log),
	}

	if cfg.Output.DB != "" {
		db, err := sql.Open("sqlite", cfg.Output.DB)
		if err != nil {
			return fmt.Errorf("opening %v: %w", cfg.Output.DB, err)
		}
		defer db.Close()
		opts = append(opts, solver.DB(db))
	}

	if cfg.Output.MetricsAddr != "" {
		rec := metrics.NewRecorder()
		opts = append(opts, solver.Observe(rec))

		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{Addr: cfg.Output.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	q := queue.New()
	if cfg.Optimizer.ReconstructEvery > 0 {
		opts = append(opts, solver.Reconstruct(q, cfg.Optimizer.ReconstructEvery))
	}

	it, err := solver.NewIterator(fn, sys, opts...)
	if err != nil {
		return err
	}
	s := &solver.Solver{
		Iter:         it,
		MaxIter:      cfg.Optimizer.Iterations,
		MaxNoImprove: cfg.Optimizer.MaxNoImprove,
		Tolerance:    cfg.Optimizer.Tolerance,
	}
	if err := s.Run(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "iterations: %v\nevaluations: %v\nenergy: %v\nconverged: %v\nqueued shapes: %v\n",
		s.Niter(), s.Neval(), s.Energy(), s.Converged(), q.Len())
	return nil
}

// buildSystem scatters particles over Count spheres centred at the origin.
func buildSystem(cfg *config.Config) *psys.System {
	sys := psys.New()
	r := cfg.Domains.Radius
	low, up := r3.Vec{X: -r, Y: -r, Z: -r}, r3.Vec{X: r, Y: r, Z: r}
	for d := 0; d < cfg.Domains.Count; d++ {
		rng := rand.New(rand.NewSource(cfg.Optimizer.Seed + int64(d)))
		sys.AddDomain(&domain.Sphere{Radius: r}, psys.RandPop(cfg.Domains.Particles, low, up, rng))
	}
	return sys
}

// buildFunction combines repulsion within a domain with correspondence
// across domains, corrected by centering.
func buildFunction(cfg *config.Config, log *zap.Logger) shapeworks.VectorFunction {
	c := cfg.Combinator
	comb := dual.New(
		dual.Primary(&terms.Repulsion{Sigma: cfg.Terms.Sigma}),
		dual.Secondary(&terms.Correspondence{Stiffness: cfg.Terms.Stiffness, MaxMove: cfg.Terms.MaxMove}),
		dual.Correction(&terms.Centering{Stiffness: cfg.Terms.Stiffness, MaxMove: cfg.Terms.MaxMove}),
		dual.PrimaryOn(c.PrimaryOn),
		dual.SecondaryOn(c.SecondaryOn),
		dual.GradientScaling(c.GradientScaling),
		dual.EnergyScaling(c.EnergyScaling),
		dual.CorrectionScaling(c.CorrectionGradientScaling, c.CorrectionEnergyScaling),
	)
	if cfg.Terms.Debug {
		return shapeworks.NewPrinter(comb, log.Named("terms"))
	}
	return comb
}
