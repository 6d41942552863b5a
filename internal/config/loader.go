package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding the configuration, e.g. LABFLOW_LOG_LEVEL.
const EnvPrefix = "LABFLOW"

// Load reads the configuration file at path, if any, applies LABFLOW_* environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		err := v.ReadInConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", path)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	err = Validate(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("workflow.poll_interval", def.Workflow.PollInterval)
	v.SetDefault("workflow.timeout", def.Workflow.Timeout)
	v.SetDefault("external_command.timeout", def.ExternalCommand.Timeout)
	v.SetDefault("external_command.temp_dir", def.ExternalCommand.TempDir)
	v.SetDefault("external_command.shell", def.ExternalCommand.Shell)
	v.SetDefault("threshold.connectivity", def.Threshold.Connectivity)
	v.SetDefault("metrics.address", def.Metrics.Address)
}

// Validate checks the configuration values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return errors.Wrap(err, "validation error")
	}

	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, e.Namespace()+": failed on "+e.Tag()+" "+e.Param())
	}

	return errors.Errorf("invalid configuration:\n  - %s", strings.Join(messages, "\n  - "))
}
