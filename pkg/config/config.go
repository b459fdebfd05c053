// Package config provides the configuration for trace analysis sessions.
// It defines a single AnalysisConfig structure organized into logical
// sections:
//   - Trace: where trace event files live and how they are encoded
//   - Filters: event filtering applied while reading
//   - Logging: log level and encoding
//   - Performance: worker counts and buffer sizes for table composition
//   - Output: export format and destination
//
// Example usage:
//
//	cfg := config.DefaultAnalysisConfig("e2e-latency")
//	cfg.Trace.Dir = "/var/trace/session-1"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"runtime"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// AnalysisConfig configures one trace analysis session.
type AnalysisConfig struct {
	// Name identifies the analysis session
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Trace locates and decodes the trace event files
	Trace TraceConfig `yaml:"trace" json:"trace"`

	// Filters select which events enter the analysis
	Filters FilterConfig `yaml:"filters" json:"filters"`

	// Logging controls log output
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Performance controls concurrency during table composition
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Output controls table export
	Output OutputConfig `yaml:"output" json:"output"`
}

// TraceConfig locates the trace event files of a session.
type TraceConfig struct {
	// Dir is the directory holding the event files
	Dir string `yaml:"dir" json:"dir"`
	// Pattern selects event files inside Dir
	Pattern string `yaml:"pattern" json:"pattern"`
	// Compression names the file compression (auto, none, gzip, zstd, lz4, s2)
	Compression string `yaml:"compression" json:"compression"`
	// CacheEnabled reuses filtered event caches between sessions
	CacheEnabled bool `yaml:"cache_enabled" json:"cache_enabled"`
	// CacheDir overrides where caches are written (default: Dir)
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// FilterConfig selects which events enter the analysis.
type FilterConfig struct {
	// Events keeps only the named trace points when non-empty
	Events []string `yaml:"events" json:"events"`
	// StripLeadSeconds drops events within the first N seconds of the trace
	StripLeadSeconds float64 `yaml:"strip_lead_seconds" json:"strip_lead_seconds"`
	// StripTrailSeconds drops events within the last N seconds of the trace
	StripTrailSeconds float64 `yaml:"strip_trail_seconds" json:"strip_trail_seconds"`
	// DurationSeconds keeps only a window of N seconds (0 = whole trace)
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
	// OffsetSeconds shifts the duration window from the trace start
	OffsetSeconds float64 `yaml:"offset_seconds" json:"offset_seconds"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Encoding selects the log format (json or console)
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables colored, stack-traced output
	Development bool `yaml:"development" json:"development"`
}

// PerformanceConfig controls concurrency during table composition.
type PerformanceConfig struct {
	// Workers defines the number of concurrent table builders (0 = NumCPU)
	Workers int `yaml:"workers" json:"workers"`
	// BufferSize sets the event channel buffer between reader and handlers
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// OutputConfig controls table export.
type OutputConfig struct {
	// Dir is the directory exported tables are written to
	Dir string `yaml:"dir" json:"dir"`
	// Format selects the export encoding (arrow or jsonl)
	Format string `yaml:"format" json:"format"`
	// Compression names the export compression for jsonl output
	Compression string `yaml:"compression" json:"compression"`
}

// DefaultAnalysisConfig creates an AnalysisConfig with working defaults.
func DefaultAnalysisConfig(name string) *AnalysisConfig {
	return &AnalysisConfig{
		Name:    name,
		Version: "1.0.0",
		Trace: TraceConfig{
			Pattern:      "*.jsonl*",
			Compression:  "auto",
			CacheEnabled: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Performance: PerformanceConfig{
			Workers:    runtime.NumCPU(),
			BufferSize: 4096,
		},
		Output: OutputConfig{
			Format:      "arrow",
			Compression: "none",
		},
	}
}

var validCompressions = map[string]struct{}{
	"": {}, "auto": {}, "none": {}, "gzip": {}, "zstd": {}, "lz4": {}, "s2": {},
}

// Validate checks required fields and value ranges. Sessions should call it
// after loading configuration to catch errors early.
func (c *AnalysisConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if c.Trace.Dir == "" {
		return errors.New(errors.ErrorTypeConfig, "trace.dir is required")
	}
	if _, ok := validCompressions[c.Trace.Compression]; !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unknown trace compression %q", c.Trace.Compression)
	}
	if c.Filters.StripLeadSeconds < 0 || c.Filters.StripTrailSeconds < 0 {
		return errors.New(errors.ErrorTypeConfig, "strip seconds cannot be negative")
	}
	if c.Filters.DurationSeconds < 0 || c.Filters.OffsetSeconds < 0 {
		return errors.New(errors.ErrorTypeConfig, "duration window cannot be negative")
	}
	if c.Performance.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "workers cannot be negative")
	}
	if c.Performance.BufferSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "buffer_size cannot be negative")
	}
	switch c.Output.Format {
	case "", "arrow", "jsonl":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output format %q", c.Output.Format)
	}
	if _, ok := validCompressions[c.Output.Compression]; !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unknown output compression %q", c.Output.Compression)
	}
	return nil
}

// GetWorkers returns the worker count, defaulting to the CPU count.
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// CacheLocation returns where event caches belong for this trace.
func (t *TraceConfig) CacheLocation() string {
	if t.CacheDir != "" {
		return t.CacheDir
	}
	return t.Dir
}
