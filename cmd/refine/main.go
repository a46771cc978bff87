package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/benbjohnson/refine"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

var (
	configPath string
	backend    string
	verbose    bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "refine",
	Short:         "refine captures constraints over fixed values & refines alias answers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML or YAML config file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "solver backend (bitblast, z3, yices)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "log level")
}

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	rootCmd.AddCommand(analyzeCommand)
	rootCmd.AddCommand(dumpCommand)
	rootCmd.AddCommand(queryCommand)
	rootCmd.AddCommand(versionCommand)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging() error {
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(log.DebugLevel)
		return nil
	}

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

// loadConfig returns the configuration from --config, or the defaults.
// The --backend flag overrides the configured backend.
func loadConfig() (refine.Config, error) {
	config := refine.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = refine.LoadConfig(configPath); err != nil {
			return config, err
		}
	}
	if backend != "" {
		config.Solver.Backend = backend
	}
	return config, config.Validate()
}
