// Command botctl is the operator CLI for the self-supervising skill
// execution framework: routing test messages, inspecting the error
// log, resolving gates, running the improvement loop's analysis cycle,
// and managing proposals and fixes. Structured the way the teacher
// lays out cmd/vc: one file per subcommand, a package-level rootCmd,
// and global persistent flags threaded into each subcommand's Run.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	dataDirFlag   string
	skillsDirFlag string
	configPath    string
	jsonOutput    bool
)

var rootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "Operate the self-supervising skill execution framework",
	Long: `botctl drives the router, error logger, verification gates,
self-improvement loop, and auto-fix engine from the command line.`,
}

func main() {
	_ = godotenv.Load(".env")

	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "override the configured data directory")
	rootCmd.PersistentFlags().StringVar(&skillsDirFlag, "skills-dir", "", "override the configured skills directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "botctl.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "accepted but not read; subcommands print JSON either way")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
