package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/media"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	parallelFlag int
	ffmpegFlag   string
	chunkFlag    time.Duration
	groupFlag    int
	intervalFlag int
	qualityFlag  int
)

var rootCmd = &cobra.Command{
	Use:   "mediaprep",
	Short: "Batch ffmpeg utilities for hive recordings",
	Long: `mediaprep prepares hive recordings for annotation and training. Every subcommand
processes all supported files of <input-dir> in parallel and keeps going when one file fails.

Examples:
  mediaprep split-video ./full_healthy ./final_healthy --chunk 60s
  mediaprep extract-audio ./full_healthy ./audio
  mediaprep split-audio ./audio/full ./audio/final --chunk 1m
  mediaprep combine-audio ./audio/unhealthy ./audio/combined --group 10
  mediaprep extract-frames ./video/night ./images/night --interval 29 --quality 2`,
	SilenceUsage: true,
}

func newProcessor() *media.Processor {
	cfg := &config.Config{Logger: config.Logger{Encoding: "console", Level: "info", DisableStacktrace: true}}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logger.Level = lvl
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	return media.NewProcessor(media.Options{FFmpeg: ffmpegFlag, Parallel: parallelFlag}, appLogger)
}

func report(summary *media.Summary, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("done: %d succeeded, %d failed\n", len(summary.Succeeded), len(summary.Failed))
	for _, f := range summary.Failed {
		fmt.Printf("  failed: %s: %v\n", f.File, f.Err)
	}
	return nil
}

var splitVideoCmd = &cobra.Command{
	Use:   "split-video <input-dir> <output-dir>",
	Short: "Cut videos into fixed-length chunks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(newProcessor().SplitVideos(cmd.Context(), args[0], args[1], chunkFlag))
	},
}

var extractAudioCmd = &cobra.Command{
	Use:   "extract-audio <input-dir> <output-dir>",
	Short: "Extract 44.1kHz stereo WAV audio from videos",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(newProcessor().ExtractAudio(cmd.Context(), args[0], args[1]))
	},
}

var splitAudioCmd = &cobra.Command{
	Use:   "split-audio <input-dir> <output-dir>",
	Short: "Cut mp3 files into fixed-length chunks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(newProcessor().SplitAudio(cmd.Context(), args[0], args[1], chunkFlag))
	},
}

var combineAudioCmd = &cobra.Command{
	Use:   "combine-audio <input-dir> <output-dir>",
	Short: "Join every N mp3 chunks into one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(newProcessor().CombineAudio(cmd.Context(), args[0], args[1], groupFlag))
	},
}

var extractFramesCmd = &cobra.Command{
	Use:   "extract-frames <input-dir> <output-dir>",
	Short: "Save every Nth video frame as jpg",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(newProcessor().ExtractFrames(cmd.Context(), args[0], args[1], intervalFlag, qualityFlag))
	},
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&parallelFlag, "parallel", "p", media.DefaultParallelJobs, "Files processed at the same time")
	rootCmd.PersistentFlags().StringVar(&ffmpegFlag, "ffmpeg", "ffmpeg", "ffmpeg binary")

	splitVideoCmd.Flags().DurationVar(&chunkFlag, "chunk", time.Minute, "Chunk length")
	splitAudioCmd.Flags().DurationVar(&chunkFlag, "chunk", time.Minute, "Chunk length")
	combineAudioCmd.Flags().IntVar(&groupFlag, "group", 10, "Chunks per combined file")
	extractFramesCmd.Flags().IntVar(&intervalFlag, "interval", 5, "Keep one frame out of every N")
	extractFramesCmd.Flags().IntVar(&qualityFlag, "quality", 2, "JPEG quality, 2 (best) to 31")

	rootCmd.AddCommand(splitVideoCmd, extractAudioCmd, splitAudioCmd, combineAudioCmd, extractFramesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
