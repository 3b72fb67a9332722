package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvironmentLocal selects the bounded local process pool.
	EnvironmentLocal = "local"
	// EnvironmentCluster selects batch scheduler submission.
	EnvironmentCluster = "cluster"
)

// Config holds one execution profile: where sweeps run and with what
// resources.
type Config struct {
	// Environment selects the backend: "local" or "cluster".
	Environment string `mapstructure:"environment"`

	// RootDir is the directory unit output directories and the result index
	// live under.
	RootDir string `mapstructure:"root_dir"`

	// Command is the simulation executable and its fixed arguments. Each
	// invocation receives the unit's working directory appended as the
	// single positional argument.
	Command []string `mapstructure:"command"`

	// PostCommand is an optional post-processing step with the same
	// contract, run after Command in the same directory.
	PostCommand []string `mapstructure:"post_command"`

	// BatchTimeout bounds one batch's wall clock. Zero means none.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`

	Local struct {
		// Workers caps concurrently running units.
		Workers int `mapstructure:"workers"`
	} `mapstructure:"local"`

	Cluster struct {
		Partition    string        `mapstructure:"partition"`
		MemoryMB     int           `mapstructure:"memory_mb"`
		TimeLimit    string        `mapstructure:"time_limit"`
		CPUs         int           `mapstructure:"cpus"`
		BatchSize    int           `mapstructure:"batch_size"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"cluster"`
}

// Load reads a profile from the given file, or searches for gridsweep.yaml
// in the working directory and ./config when path is empty. Environment
// variables with a GRIDSWEEP_ prefix override file values
// (GRIDSWEEP_CLUSTER_PARTITION overrides cluster.partition); with no config
// file present the profile is built from defaults and environment alone.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gridsweep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("GRIDSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults double as the key registry AutomaticEnv matches against
	v.SetDefault("environment", EnvironmentLocal)
	v.SetDefault("root_dir", ".")
	v.SetDefault("command", []string{})
	v.SetDefault("post_command", []string{})
	v.SetDefault("batch_timeout", time.Duration(0))
	v.SetDefault("local.workers", runtime.NumCPU())
	v.SetDefault("cluster.partition", "")
	v.SetDefault("cluster.memory_mb", 0)
	v.SetDefault("cluster.time_limit", "")
	v.SetDefault("cluster.cpus", 0)
	v.SetDefault("cluster.batch_size", 1)
	v.SetDefault("cluster.poll_interval", 5*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading profile: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Environment {
	case EnvironmentLocal, EnvironmentCluster:
	default:
		return fmt.Errorf("unknown environment %q (want %q or %q)", c.Environment, EnvironmentLocal, EnvironmentCluster)
	}

	if c.Local.Workers < 1 {
		return fmt.Errorf("local.workers must be positive, got %d", c.Local.Workers)
	}
	if c.Cluster.BatchSize < 1 {
		return fmt.Errorf("cluster.batch_size must be positive, got %d", c.Cluster.BatchSize)
	}
	if c.Cluster.PollInterval <= 0 {
		return fmt.Errorf("cluster.poll_interval must be positive, got %s", c.Cluster.PollInterval)
	}

	return nil
}
