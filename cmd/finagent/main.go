package main

import (
	"fmt"
	"os"

	"finagent/internal/config"
	"finagent/internal/logger"

	"github.com/spf13/cobra"
)

var (
	env        *config.Env
	configPath string
)

func main() {
	var err error
	env, err = config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:          "finagent",
		Short:        "Multi-agent financial analyst",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// ask streams to stdout, so its logs go to stderr as text.
			logger.Init(env.LogLevel, os.Stderr, cmd.Name() == askCmd.Name())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", env.ConfigPath, "path to config.toml")

	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(playgroundCmd)
	rootCmd.AddCommand(askCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
