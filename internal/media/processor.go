package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/utils"
)

// CommandRunner executes a binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Options struct {
	FFmpeg   string
	FFprobe  string
	Parallel int
}

type Processor struct {
	ffmpeg   string
	ffprobe  string
	parallel int
	run      CommandRunner
	logger   logger.Logger
}

func NewProcessor(opts Options, log logger.Logger) *Processor {
	p := &Processor{
		ffmpeg:   opts.FFmpeg,
		ffprobe:  opts.FFprobe,
		parallel: opts.Parallel,
		run:      execRunner,
		logger:   log,
	}
	if p.ffmpeg == "" {
		p.ffmpeg = "ffmpeg"
	}
	if p.ffprobe == "" {
		p.ffprobe = "ffprobe"
	}
	return p
}

func (p *Processor) ffmpegRun(ctx context.Context, args []string) error {
	output, err := p.run(ctx, p.ffmpeg, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %v, output: %s", err, lastLines(output, 5))
	}
	return nil
}

// Probe reports resolution and duration of input.
func (p *Processor) Probe(ctx context.Context, input string) (*VideoInfo, error) {
	output, err := p.run(ctx, p.ffprobe, ProbeArgs(input)...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe error: %v output: %s", err, lastLines(output, 5))
	}
	return ParseProbeOutput(string(output))
}

func (p *Processor) batch(ctx context.Context, op, inDir, outDir string, match func(string) bool, fn func(ctx context.Context, file string) error) (*Summary, error) {
	files, err := FindFiles(inDir, match)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		p.logger.Warnf("%s: no supported files found in %s", op, inDir)
		return &Summary{}, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	start := time.Now()
	p.logger.Infof("%s: found %d files in %s", op, len(files), inDir)
	summary := ProcessAll(ctx, files, p.parallel, func(ctx context.Context, file string) error {
		if err := fn(ctx, file); err != nil {
			p.logger.Errorf("%s: %s failed: %v", op, filepath.Base(file), err)
			return err
		}
		p.logger.Infof("%s: saved %s", op, filepath.Base(file))
		return nil
	})
	p.logger.Infof("%s: %d succeeded, %d failed in %s", op, len(summary.Succeeded), len(summary.Failed), time.Since(start))
	return summary, nil
}

func (p *Processor) SplitVideos(ctx context.Context, inDir, outDir string, chunk time.Duration) (*Summary, error) {
	return p.batch(ctx, "split-video", inDir, outDir, utils.IsVideoFile, func(ctx context.Context, file string) error {
		if info, err := p.Probe(ctx, file); err == nil && chunk > 0 {
			p.logger.Debugf("%s: %dx%d, %.1fs, ~%.0f chunks", filepath.Base(file), info.Width, info.Height,
				info.Duration, math.Ceil(info.Duration/chunk.Seconds()))
		}
		if err := os.MkdirAll(filepath.Join(outDir, utils.BaseName(file)), 0o755); err != nil {
			return err
		}
		return p.ffmpegRun(ctx, SplitVideoArgs(file, outDir, chunk))
	})
}

func (p *Processor) ExtractAudio(ctx context.Context, inDir, outDir string) (*Summary, error) {
	return p.batch(ctx, "extract-audio", inDir, outDir, utils.IsVideoFile, func(ctx context.Context, file string) error {
		return p.ffmpegRun(ctx, ExtractAudioArgs(file, outDir))
	})
}

func (p *Processor) SplitAudio(ctx context.Context, inDir, outDir string, chunk time.Duration) (*Summary, error) {
	isMP3 := func(name string) bool { return strings.EqualFold(filepath.Ext(name), ".mp3") }
	return p.batch(ctx, "split-audio", inDir, outDir, isMP3, func(ctx context.Context, file string) error {
		if err := os.MkdirAll(filepath.Join(outDir, utils.BaseName(file)), 0o755); err != nil {
			return err
		}
		return p.ffmpegRun(ctx, SplitAudioArgs(file, outDir, chunk))
	})
}

func (p *Processor) ExtractFrames(ctx context.Context, inDir, outDir string, interval, quality int) (*Summary, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %d", interval)
	}
	return p.batch(ctx, "extract-frames", inDir, outDir, utils.IsVideoFile, func(ctx context.Context, file string) error {
		if err := os.MkdirAll(filepath.Join(outDir, utils.BaseName(file)), 0o755); err != nil {
			return err
		}
		return p.ffmpegRun(ctx, ExtractFramesArgs(file, outDir, interval, quality))
	})
}

// CombineAudio joins every group of sorted mp3 files in inDir into <dirname>_combined_NNN.mp3.
func (p *Processor) CombineAudio(ctx context.Context, inDir, outDir string, groupSize int) (*Summary, error) {
	isMP3 := func(name string) bool { return strings.EqualFold(filepath.Ext(name), ".mp3") }
	files, err := FindFiles(inDir, isMP3)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		p.logger.Warnf("combine-audio: no mp3 files found in %s", inDir)
		return &Summary{}, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	base := filepath.Base(filepath.Clean(inDir))
	groups := GroupFiles(files, groupSize)
	outputs := make([]string, len(groups))
	byOutput := make(map[string][]string, len(groups))
	for i, g := range groups {
		outputs[i] = filepath.Join(outDir, fmt.Sprintf("%s_combined_%03d.mp3", base, i+1))
		byOutput[outputs[i]] = g
	}

	summary := ProcessAll(ctx, outputs, p.parallel, func(ctx context.Context, output string) error {
		if err := p.stitch(ctx, byOutput[output], output); err != nil {
			p.logger.Errorf("combine-audio: %s failed: %v", filepath.Base(output), err)
			return err
		}
		p.logger.Infof("combine-audio: saved %s", output)
		return nil
	})
	return summary, nil
}

func (p *Processor) stitch(ctx context.Context, files []string, output string) error {
	list, err := ConcatList(files)
	if err != nil {
		return err
	}
	listFile, err := os.CreateTemp("", "concat_list_*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listFile.Name())
	if _, err := listFile.WriteString(list); err != nil {
		listFile.Close()
		return fmt.Errorf("failed to write to concat list: %w", err)
	}
	if err := listFile.Close(); err != nil {
		return err
	}
	return p.ffmpegRun(ctx, CombineAudioArgs(listFile.Name(), output))
}

func lastLines(output []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
