// Package config loads the labflow engine configuration.
package config

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/askiada/go-labflow/pkg/pipeline/runner"
	"github.com/askiada/go-labflow/pkg/volume"
)

// Config is the engine configuration.
type Config struct {
	Log             LogConfig             `mapstructure:"log" yaml:"log"`
	Workflow        WorkflowConfig        `mapstructure:"workflow" yaml:"workflow"`
	ExternalCommand ExternalCommandConfig `mapstructure:"external_command" yaml:"external_command"`
	Threshold       ThresholdConfig       `mapstructure:"threshold" yaml:"threshold"`
	Metrics         MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// WorkflowConfig configures the workflow runner.
type WorkflowConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// ExternalCommandConfig configures the external command runner.
type ExternalCommandConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	TempDir string        `mapstructure:"temp_dir" yaml:"temp_dir" validate:"omitempty,dir"`
	Shell   string        `mapstructure:"shell" yaml:"shell" validate:"required"`
}

// ThresholdConfig configures the threshold runner.
type ThresholdConfig struct {
	Connectivity int `mapstructure:"connectivity" yaml:"connectivity" validate:"oneof=6 18 26"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Address serves Prometheus metrics when set, e.g. ":9090".
	Address string `mapstructure:"address" yaml:"address" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	opts := runner.DefaultOptions()

	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Workflow: WorkflowConfig{
			PollInterval: opts.WorkflowPollInterval,
			Timeout:      opts.WorkflowTimeout,
		},
		ExternalCommand: ExternalCommandConfig{
			Timeout: opts.CommandTimeout,
			Shell:   opts.Shell,
		},
		Threshold: ThresholdConfig{Connectivity: int(opts.Connectivity)},
	}
}

// RunnerOptions returns the runner defaults described by the configuration.
func (c *Config) RunnerOptions() runner.Options {
	return runner.Options{
		WorkflowPollInterval: c.Workflow.PollInterval,
		WorkflowTimeout:      c.Workflow.Timeout,
		CommandTimeout:       c.ExternalCommand.Timeout,
		TempDir:              c.ExternalCommand.TempDir,
		Shell:                c.ExternalCommand.Shell,
		Connectivity:         volume.Connectivity(c.Threshold.Connectivity),
	}
}

// Logger builds the structured logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level

	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
