// Package config loads helixctl settings from an optional helixsim.yaml and
// HELIXSIM_* environment variables. Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	FileName  = "helixsim"
	EnvPrefix = "HELIXSIM"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	RunsDir  string         `mapstructure:"runs_dir"`
	Mutation MutationConfig `mapstructure:"mutation"`
	Growth   GrowthConfig   `mapstructure:"growth"`
	AMR      AMRConfig      `mapstructure:"amr"`
	Serve    ServeConfig    `mapstructure:"serve"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	// Kind is memory or sqlite; empty picks the build default.
	Kind       string `mapstructure:"kind"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type MutationConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	Temperature         float64       `mapstructure:"temperature"`
	TempUnit            string        `mapstructure:"temp_unit"`
	SubstitutionRate    float64       `mapstructure:"substitution_rate"`
	Generations         int           `mapstructure:"generations"`
	PH                  float64       `mapstructure:"ph"`
	Nutrients           string        `mapstructure:"nutrients"`
	Oxygen              string        `mapstructure:"oxygen"`
	IndelRate           float64       `mapstructure:"indel_rate"`
	ReseedPerGeneration bool          `mapstructure:"reseed_per_generation"`
	NonCodingTail       int           `mapstructure:"non_coding_tail"`
}

type GrowthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Strain   string        `mapstructure:"strain"`
	Ticks    int           `mapstructure:"ticks"`
}

type AMRConfig struct {
	Organism string `mapstructure:"organism"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("store.kind", "")
	v.SetDefault("store.sqlite_path", "helixsim.db")
	v.SetDefault("runs_dir", "runs")

	v.SetDefault("mutation.interval", 800*time.Millisecond)
	v.SetDefault("mutation.temperature", 37.0)
	v.SetDefault("mutation.temp_unit", "C")
	v.SetDefault("mutation.substitution_rate", 0.01)
	v.SetDefault("mutation.generations", 5)
	v.SetDefault("mutation.ph", 7.0)
	v.SetDefault("mutation.nutrients", "Medium")
	v.SetDefault("mutation.oxygen", "Normal")
	v.SetDefault("mutation.indel_rate", 0.0)
	v.SetDefault("mutation.reseed_per_generation", false)
	v.SetDefault("mutation.non_coding_tail", 0)

	v.SetDefault("growth.interval", 300*time.Millisecond)
	v.SetDefault("growth.strain", "ecoli")
	v.SetDefault("growth.ticks", 100)

	v.SetDefault("amr.organism", "E. coli")
	v.SetDefault("serve.addr", "127.0.0.1:8080")
}

// Load reads path when given, otherwise looks for helixsim.yaml in the
// working directory and $HOME/.config/helixsim. A missing default file is
// not an error; a missing explicit file is.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/helixsim")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Mutation.Interval < 0 || c.Growth.Interval < 0 {
		return errors.New("step intervals must not be negative")
	}
	if c.Growth.Ticks < 0 {
		return errors.New("growth ticks must not be negative")
	}
	switch strings.ToLower(c.Store.Kind) {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store kind %q", c.Store.Kind)
	}
	return nil
}
