package pooling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/config"
	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

// Run pools the samples described by cfg.
//
// Every fatal precondition (sample count, input files, output directory) is
// checked before anything is written. Pools are written into a staging
// directory next to cfg.OutputDir that is renamed into place only once all
// pools are closed, so a failed or cancelled run never leaves an output
// directory behind.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Manifest, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := records.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	topo, err := NewTopology(cfg.Samples)
	if err != nil {
		return nil, err
	}
	samples, err := IndexSamples(cfg.InputDir, format, topo)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.OutputDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputAlreadyExists, cfg.OutputDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// The first sample in name order is the header template of every pool.
	tmpl, err := records.ReadTemplate(format, samples[0].Path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", samples[0].File, err)
	}
	if err := WriteMapping(cfg.MappingFile, samples); err != nil {
		return nil, fmt.Errorf("write sample name mapping: %w", err)
	}

	runID := uuid.NewString()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log = log.With(zap.String("run_id", runID))
	log.Info("starting pooling",
		zap.Int("samples", topo.Samples()),
		zap.Int("pools", topo.NumPools()),
		zap.String("format", string(format)),
		zap.Int64("seed", seed),
		zap.Int("threads", cfg.Threads),
	)

	staging := fmt.Sprintf("%s.partial-%s", filepath.Clean(cfg.OutputDir), runID)
	if err := os.Mkdir(staging, 0o755); err != nil {
		return nil, err
	}
	m, err := pool(ctx, cfg, log, staging, runID, seed, format, topo, tmpl, samples)
	if err == nil {
		err = os.Rename(staging, cfg.OutputDir)
	}
	if err != nil {
		if rerr := os.RemoveAll(staging); rerr != nil {
			log.Warn("could not remove staging directory", zap.String("dir", staging), zap.Error(rerr))
		}
		return nil, err
	}

	log.Info("pooling completed", zap.String("output", cfg.OutputDir))
	return m, nil
}

func pool(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	dir, runID string,
	seed int64,
	format records.Format,
	topo *Topology,
	tmpl records.Template,
	samples []Sample,
) (*Manifest, error) {
	pools, err := OpenPools(dir, topo, format, tmpl, cfg.Threads)
	if err != nil {
		return nil, err
	}

	dist := NewDistributor(pools, FormatOpener(format), seed, cfg.CacheSize, log)
	stats := make([]SampleStats, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Threads)
	for i, s := range samples {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, err := dist.Distribute(gctx, s, topo.Assign(s.Coordinate))
			stats[i] = st
			return err
		})
	}
	err = g.Wait()

	// Pools are closed on every path; their errors join the run's.
	if err = multierr.Append(err, pools.Close()); err != nil {
		return nil, err
	}

	m := newManifest(runID, seed, format, topo, pools, stats)
	if err := m.WriteFile(filepath.Join(dir, ManifestFile)); err != nil {
		return nil, err
	}
	return m, nil
}
