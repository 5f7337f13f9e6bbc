// Package cli implements the raimemory commands.
//
// Each subcommand (status, demo, serve) lives in its own file. This file
// defines the root command, the flags every subcommand shares and the
// configuration loading they all go through.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
)

// Version is set from main at build time.
var Version = "dev"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "raimemory",
		Short: "Responsible AI memory: an evolving memory graph with observable behavior",
		Long: `raimemory runs the RAI memory components: a memory graph that learns in
cycles, a vector bridge for recall, an observable behavior tracker and the
agents that use them. Neo4j and Redis persistence are optional.

Configuration comes from defaults, an optional YAML file and RAI_* environment
variables (e.g. RAI_AGENT_API_KEY, RAI_NEO4J_ENABLED).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", ".env file to load first")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level")

	rootCmd.AddCommand(NewStatusCommand(flags))
	rootCmd.AddCommand(NewDemoCommand(flags))
	rootCmd.AddCommand(NewServeCommand(flags))

	return rootCmd
}

// Execute runs rootCmd and exits non-zero on error.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			fmt.Fprintf(os.Stderr, "Error: [%s] %v\n", appErr.Code, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads configuration and initializes the global logger.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	var opts []config.Option
	if flags.configFile != "" {
		opts = append(opts, config.WithConfigFile(flags.configFile))
	}
	if flags.envFile != "" {
		opts = append(opts, config.WithEnvFile(flags.envFile))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		if err := cfg.Log.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	logger.Init(cfg.Log)
	return cfg, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
