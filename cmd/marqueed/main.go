package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "marqueed",
	Short: "Localized movie & series catalog server",
	Long: `marqueed - localized movie & series catalog server

Serves home, title detail, browse and search payloads as JSON from a
pre-populated catalog database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(configPath)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(configPath)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty catalog database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("marqueed {{.Version}}\n")
	rootCmd.AddCommand(serveCmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
