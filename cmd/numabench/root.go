// File: cmd/numabench/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "NUMABENCH"

// benchConfig is the resolved benchmark configuration.
type benchConfig struct {
	Workers       int
	QueueCapacity int
	Tasks         int
	MatrixSize    int
	Hint          int
	Producers     int
	SubmitRate    float64 // tasks per second over all producers, 0 = unlimited
	RetryFull     bool
	Shutdown      string // graceful or now
	Locality      string // system or single
	IdleSleep     time.Duration

	LogLevel    string
	LogFormat   string
	LogFile     string
	MetricsAddr string
}

func bindFlags(fs *flag.FlagSet) {
	fs.Int("workers", 4, "Number of worker threads.")
	fs.Int("queue-capacity", 1000, "Per-worker queue capacity.")
	fs.Int("tasks", 400, "Number of tasks to submit.")
	fs.Int("matrix-size", 100, "Dimension of the square matrices multiplied by each task.")
	fs.Int("hint", -1, "NUMA domain hint for every task; -1 lets the pool pick a random worker.")
	fs.Int("producers", 1, "Number of concurrent submitting goroutines.")
	fs.Float64("submit-rate", 0, "Overall submission rate limit in tasks per second; 0 disables the limit.")
	fs.Bool("retry-full", false, "Retry submissions rejected because a worker queue is full.")
	fs.String("shutdown", "graceful", "Shutdown mode after submitting: graceful or now.")
	fs.String("locality", "system", "Locality provider: system (NUMA topology) or single (one domain).")
	fs.Duration("idle-sleep", 50*time.Microsecond, "Pause of an idle worker between steal rounds.")
	fs.String("log-level", "info", "Log level: debug, info, warn or error.")
	fs.String("log-format", "text", "Log format: text or json.")
	fs.String("log-file", "", "Log file path; logs go to stderr when empty.")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100.")
}

func loadConfig(v *viper.Viper, cfgFile string) (benchConfig, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return benchConfig{}, errors.Wrap(err, "error while reading the config file")
		}
	}
	c := benchConfig{
		Workers:       v.GetInt("workers"),
		QueueCapacity: v.GetInt("queue-capacity"),
		Tasks:         v.GetInt("tasks"),
		MatrixSize:    v.GetInt("matrix-size"),
		Hint:          v.GetInt("hint"),
		Producers:     v.GetInt("producers"),
		SubmitRate:    v.GetFloat64("submit-rate"),
		RetryFull:     v.GetBool("retry-full"),
		Shutdown:      strings.ToLower(v.GetString("shutdown")),
		Locality:      strings.ToLower(v.GetString("locality")),
		IdleSleep:     v.GetDuration("idle-sleep"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
		LogFile:       v.GetString("log-file"),
		MetricsAddr:   v.GetString("metrics-addr"),
	}
	return c, c.validate()
}

func (c benchConfig) validate() error {
	switch {
	case c.Tasks < 0:
		return errors.Errorf("tasks must not be negative, got %d", c.Tasks)
	case c.MatrixSize <= 0:
		return errors.Errorf("matrix-size must be greater than 0, got %d", c.MatrixSize)
	case c.Producers <= 0:
		return errors.Errorf("producers must be greater than 0, got %d", c.Producers)
	case c.SubmitRate < 0:
		return errors.Errorf("submit-rate must not be negative, got %v", c.SubmitRate)
	}
	switch c.Shutdown {
	case "graceful", "now":
	default:
		return errors.Errorf("unknown shutdown mode %q", c.Shutdown)
	}
	switch c.Locality {
	case "system", "single":
	default:
		return errors.Errorf("unknown locality provider %q", c.Locality)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "numabench [flags]",
		Short: "Benchmark the NUMA-aware work-stealing pool",
		Long: `numabench submits matrix-multiply tasks to a numapool, shuts the pool
down and prints how long the batch took along with scheduler counters.
Every flag can also be set in the config file or as NUMABENCH_<FLAG>.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), c, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml).")
	bindFlags(cmd.Flags())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	cobra.CheckErr(v.BindPFlags(cmd.Flags()))
	return cmd
}
