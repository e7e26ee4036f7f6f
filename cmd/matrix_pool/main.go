// Command matrix_pool spreads the reads of N sample files over 3·√N pool
// files laid out as the rows, columns and diagonals of a square matrix.
//
//	matrix_pool /path/to/input_bam /path/to/output_bam 64
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/config"
	"github.com/Altius/stampipes/programs/matrix_pool/internal/logging"
	"github.com/Altius/stampipes/programs/matrix_pool/internal/pooling"
)

type options struct {
	configFile string
	format     string
	mapping    string
	threads    int
	seed       int64
	cacheSize  int
	verbose    bool
	logFormat  string
	cpuprofile string
	memprofile string
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix_pool <input_dir> <output_dir> <number_of_samples>",
		Short: "Pool sample reads into row, column and diagonal pools",
		Long: `Reads every sample file of input_dir and writes each read to one of three
pools chosen at random: the pool of the sample's row, of its column or of its
diagonal in a square matrix of all samples. number_of_samples must be a
perfect square N; output_dir receives 3·√N pool files and must not exist.

A sample_name_mapping.csv relating file names to anonymized sample names is
written to the working directory.`,
		Args:         cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "read settings from a JSON or YAML `file`")
	f.StringVar(&opts.format, "format", "bam", "sample file format: bam, fastq or fasta")
	f.StringVar(&opts.mapping, "mapping", config.DefaultMappingFile, "write the sample name mapping to `file`")
	f.IntVar(&opts.threads, "threads", 1, "number of samples processed at once")
	f.Int64Var(&opts.seed, "seed", 0, "seed for read placement, 0 picks one")
	f.IntVar(&opts.cacheSize, "cache-size", 128, "records buffered per pool before a hand-off")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	f.StringVar(&opts.logFormat, "log-format", "console", "log encoding: console or json")
	f.StringVar(&opts.cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	f.StringVar(&opts.memprofile, "memprofile", "", "write memory profile to `file`")
	return cmd
}

// loadConfig reads the config file, if any, and applies the arguments and
// every flag given on the command line on top of it.
func loadConfig(cmd *cobra.Command, args []string, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.ReadFile(opts.configFile); err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	samples, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, fmt.Errorf("number_of_samples must be an integer, got %q", args[2])
	}
	cfg.InputDir = args[0]
	cfg.OutputDir = args[1]
	cfg.Samples = samples

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("mapping") {
		cfg.MappingFile = opts.mapping
	}
	if flags.Changed("threads") {
		cfg.Threads = opts.threads
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if flags.Changed("cache-size") {
		cfg.CacheSize = opts.cacheSize
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	cfg, err := loadConfig(cmd, args, opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging, opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := pool(cmd, cfg, opts, logger); err != nil {
		logger.Error("pooling failed", zap.Error(err))
		return loggedError{err}
	}
	return nil
}

// loggedError is an error the logger has already reported.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

// report prints err to w unless the logger already did.
func report(w io.Writer, err error) {
	var logged loggedError
	if errors.As(err, &logged) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func pool(cmd *cobra.Command, cfg *config.Config, opts *options, logger *zap.Logger) error {
	if opts.cpuprofile != "" {
		f, err := os.Create(opts.cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	logger.Debug("configuration", zap.Any("config", cfg))
	if _, err := pooling.Run(cmd.Context(), cfg, logger); err != nil {
		return err
	}
	logger.Info("done")

	if opts.memprofile != "" {
		f, err := os.Create(opts.memprofile)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("could not write memory profile: %w", err)
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&options{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
}
