// Package cmd provides the command-line interface of tlmbus.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Environment variables that provide flag defaults. They may also be set in a
// .env file of the working directory.
const (
	envConfig   = "TLMBUS_CONFIG"
	envLogLevel = "TLMBUS_LOG_LEVEL"
)

// NewRootCmd creates the tlmbus command with all of its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tlmbus",
		Short: "Simulate and check split-phase bus protocols.",
		Long: `tlmbus runs an initiator and a target of an AXI, ACE or CHI ` +
			`family bus against each other, checks every phase that ` +
			`crosses the link and reports what it found.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckReplayCmd())
	rootCmd.AddCommand(newSweepCmd())

	return rootCmd
}

// Execute runs the root command and exits with a non-zero code on failure.
func Execute() {
	err := loadDotEnv(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = NewRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return fallback
}
