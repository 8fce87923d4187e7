// Package config holds the tool's own settings. The measurement protocol is
// user input and lives in package protocol.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ALGOPROTO_ENGINE_WORKERS.
const EnvPrefix = "ALGOPROTO"

// Settings is the complete tool configuration.
type Settings struct {
	Engine  Engine  `yaml:"engine"  envconfig:"ENGINE"`
	Logging Logging `yaml:"logging" envconfig:"LOGGING"`
}

// Engine bounds protocol execution.
type Engine struct {
	// Workers is the number of invocations executed concurrently.
	Workers int `yaml:"workers" envconfig:"WORKERS" validate:"gte=1,lte=256"`
	// RunTimeout is the wall-clock budget of one run. Invocations still
	// pending when it expires are recorded as not executed.
	RunTimeout time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" validate:"gt=0"`
	// MaxArrayLength caps array-valued metrics in the result document.
	MaxArrayLength int `yaml:"max_array_length" envconfig:"MAX_ARRAY_LENGTH" validate:"gte=1"`
}

// Logging selects the log level and handler format.
type Logging struct {
	Level  string `yaml:"level"  envconfig:"LEVEL"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Engine: Engine{
			Workers:        4,
			RunTimeout:     10 * time.Minute,
			MaxArrayLength: 64,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

// Load builds Settings from the defaults, the optional YAML file at path,
// and ALGOPROTO_* environment variables, in increasing precedence. An empty
// path or a missing file leaves the defaults in place.
func Load(path string) (Settings, error) {
	cfg := Default()

	if path != "" {
		err := loadFile(path, &cfg)
		if err != nil {
			return Settings{}, err
		}
	}

	err := envconfig.Process(EnvPrefix, &cfg)
	if err != nil {
		return Settings{}, fmt.Errorf("config: environment: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Settings{}, err
	}

	return cfg, nil
}

// Validate checks field constraints.
func (s Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}

	return nil
}

func loadFile(path string, cfg *Settings) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	return nil
}
