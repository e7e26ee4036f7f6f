// Package config holds the settings of a pooling run. Settings come from an
// optional JSON or YAML file and are then overridden by command line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

// DefaultMappingFile is where the filename -> sample name table goes.
const DefaultMappingFile = "sample_name_mapping.csv"

// Config is a specification of sample files -> pool files
type Config struct {
	InputDir    string `json:"input_dir" yaml:"input_dir"`       // Directory holding the sample files
	OutputDir   string `json:"output_dir" yaml:"output_dir"`     // Directory to create for the pools
	Samples     int    `json:"samples" yaml:"samples"`           // Number of samples, a perfect square
	Format      string `json:"format" yaml:"format"`             // bam, fastq or fasta
	MappingFile string `json:"mapping_file" yaml:"mapping_file"` // Filename -> anonymized name table
	Threads     int    `json:"threads" yaml:"threads"`           // Samples processed at once
	Seed        int64  `json:"seed" yaml:"seed"`                 // 0 picks a seed from the clock
	CacheSize   int    `json:"cache_size" yaml:"cache_size"`     // Records buffered per pool before a hand-off

	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console, json
}

// Default returns a Config with every optional field filled in.
func Default() *Config {
	return &Config{
		Format:      string(records.BAM),
		MappingFile: DefaultMappingFile,
		Threads:     1,
		CacheSize:   128,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ReadFile loads filename on top of the defaults. Files ending in .json are
// decoded as JSON, anything else as YAML.
func ReadFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return configFromJSON(data)
	}
	return configFromYAML(data)
}

func configFromJSON(data []byte) (*Config, error) {
	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return c, nil
}

func configFromYAML(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return c, nil
}

// Validate reports settings that can never make a valid run. Whether the
// sample count forms a square and the directories exist is checked by the
// run itself.
func (c *Config) Validate() error {
	var errs []error
	if c.InputDir == "" {
		errs = append(errs, errors.New("input directory is not set"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is not set"))
	}
	if c.InputDir != "" && c.OutputDir != "" && filepath.Clean(c.InputDir) == filepath.Clean(c.OutputDir) {
		errs = append(errs, errors.New("input and output directory are the same"))
	}
	if _, err := records.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if c.MappingFile == "" {
		errs = append(errs, errors.New("mapping file is not set"))
	}
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be at least 1, got %d", c.Threads))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("cache_size must be at least 1, got %d", c.CacheSize))
	}
	return errors.Join(errs...)
}
