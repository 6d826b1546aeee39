package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-kratos/stepflow"
)

// options holds every command line flag.
type options struct {
	envFile   string
	logFormat string
	logLevel  string

	provider    string
	model       string
	apiKey      string
	baseURL     string
	project     string
	location    string
	credentials string
	maxTokens   int64
	temperature float64

	date      string
	place     string
	condition string
	statePath string
	output    string

	timeout      time.Duration
	retries      int
	modelRetries int
	trace        bool
	confirm      bool

	schema bool
}

func newRootCmd(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "stepflow",
		Short:         "Run step workflows",
		Long:          `Build, inspect and run the weather simulation workflow`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file to load, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newRunCmd(opts, getenv),
		newDescribeCmd(opts, getenv),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				version := stepflow.Version
				if version == "" {
					version = "(devel)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), "stepflow", version)
			},
		},
	)
	return rootCmd
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr, os.Getenv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
