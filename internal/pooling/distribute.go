package pooling

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

// PoolSink accepts batches of records for a pool. Ownership of the batch
// passes to the sink.
type PoolSink interface {
	Submit(ctx context.Context, id PoolID, batch []records.Record) error
}

// Opener opens the record stream of a sample file.
type Opener func(path string) (records.Reader, error)

// FormatOpener opens sample files of the given format.
func FormatOpener(f records.Format) Opener {
	return func(path string) (records.Reader, error) {
		return records.OpenReader(f, path)
	}
}

// SampleStats counts where the reads of one sample went.
type SampleStats struct {
	Sample  Sample
	Targets Targets
	Counts  [3]int64 // per target, in Targets order
}

// Total is the number of records read from the sample.
func (s SampleStats) Total() int64 {
	return s.Counts[0] + s.Counts[1] + s.Counts[2]
}

// Distributor drains sample streams into their three pools.
type Distributor struct {
	sink      PoolSink
	open      Opener
	seed      int64
	batchSize int
	log       *zap.Logger
}

// NewDistributor creates a Distributor. batchSize is the number of records
// collected per target before they are handed to the sink.
func NewDistributor(sink PoolSink, open Opener, seed int64, batchSize int, log *zap.Logger) *Distributor {
	if batchSize < 1 {
		batchSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Distributor{
		sink:      sink,
		open:      open,
		seed:      seed,
		batchSize: batchSize,
		log:       log,
	}
}

// Distribute sends every record of s to exactly one of targets, chosen
// uniformly at random per record. The sample's stream is closed before
// Distribute returns.
func (d *Distributor) Distribute(ctx context.Context, s Sample, targets Targets) (stats SampleStats, err error) {
	stats = SampleStats{Sample: s, Targets: targets}

	r, err := d.open(s.Path)
	if err != nil {
		return stats, fmt.Errorf("open sample %s: %w", s.File, err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close sample %s: %w", s.File, cerr))
		}
	}()

	rng := sampleRand(d.seed, s)
	var cache [len(targets)][]records.Record
	flush := func(k int) error {
		if len(cache[k]) == 0 {
			return nil
		}
		batch := cache[k]
		cache[k] = make([]records.Record, 0, d.batchSize)
		if err := d.sink.Submit(ctx, targets[k], batch); err != nil {
			return fmt.Errorf("sample %s to pool_%d: %w", s.File, targets[k].Number(), err)
		}
		return nil
	}
	for k := range cache {
		cache[k] = make([]records.Record, 0, d.batchSize)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read sample %s: %w", s.File, err)
		}

		k := rng.Intn(len(targets))
		cache[k] = append(cache[k], rec)
		stats.Counts[k]++
		if len(cache[k]) == d.batchSize {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := flush(k); err != nil {
				return stats, err
			}
		}
	}
	for k := range cache {
		if err := flush(k); err != nil {
			return stats, err
		}
	}

	d.log.Info("sample processed",
		zap.String("sample", s.File),
		zap.String("name", s.Name),
		zap.Int("ordinal", s.Ordinal),
		zap.Ints("pools", []int{targets[0].Number(), targets[1].Number(), targets[2].Number()}),
		zap.Int64("records", stats.Total()),
	)
	return stats, nil
}
