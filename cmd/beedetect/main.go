package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ademnea/beehive-pipeline/internal/app"
	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/spf13/cobra"
)

var (
	configFlag string
	exitCode   int
)

var rootCmd = &cobra.Command{
	Use:   "beedetect",
	Short: "Count bees in hive videos fetched from the remote host",
	Long: `beedetect reads one JSON payload from stdin, downloads each listed video from
REMOTE_VIDEO_PATH over SSH, counts distinct tracked bees and writes the result to the
local results table and to REMOTE_OUTPUT_PATH.

Examples:
  ` + detection.UsageHint + `
  beedetect --config /etc/beedetect.yml < payload.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		v, err := config.LoadConfig(configFlag)
		if err != nil {
			return fmt.Errorf("loadConfig: %w", err)
		}
		exitCode = app.Run(ctx, app.Options{Viper: v, Stdin: os.Stdin})
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", os.Getenv("BEEDETECT_CONFIG"), "Optional YAML config file; environment variables override it")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(detection.ExitFatal)
	}
	os.Exit(exitCode)
}
