package media

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ademnea/beehive-pipeline/pkg/utils"
)

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// SplitVideoArgs cuts input into chunk-long pieces under outDir/<name>/ without re-encoding.
func SplitVideoArgs(input, outDir string, chunk time.Duration) []string {
	name := utils.BaseName(input)
	return []string{
		"-y",
		"-i", input,
		"-map", "0",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", seconds(chunk),
		"-reset_timestamps", "1",
		"-segment_format_options", "movflags=+faststart",
		filepath.Join(outDir, name, name+"_chunk_%03d.mp4"),
	}
}

func ExtractAudioArgs(input, outDir string) []string {
	return []string{
		"-y",
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		filepath.Join(outDir, utils.BaseName(input)+".wav"),
	}
}

// SplitAudioArgs numbers chunks from 001.
func SplitAudioArgs(input, outDir string, chunk time.Duration) []string {
	name := utils.BaseName(input)
	return []string{
		"-y",
		"-i", input,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "segment",
		"-segment_time", seconds(chunk),
		"-segment_start_number", "1",
		"-reset_timestamps", "1",
		filepath.Join(outDir, name, name+"_chunk_%03d.mp3"),
	}
}

// CombineAudioArgs concatenates the files named in listFile, see ConcatList.
func CombineAudioArgs(listFile, output string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		output,
	}
}

// ConcatList renders the ffmpeg concat demuxer input for files.
func ConcatList(files []string) (string, error) {
	var b strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for %s: %w", f, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return b.String(), nil
}

// ExtractFramesArgs keeps every interval-th frame as jpg; quality is ffmpeg's -q:v (2 best, 31 worst).
func ExtractFramesArgs(input, outDir string, interval, quality int) []string {
	name := utils.BaseName(input)
	return []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, interval),
		"-vsync", "vfr",
		"-q:v", strconv.Itoa(quality),
		filepath.Join(outDir, name, name+"_frame_%06d.jpg"),
	}
}

// VideoInfo is what ffprobe reports about the first video stream.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
}

func ProbeArgs(input string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "csv=p=0",
		input,
	}
}

// ParseProbeOutput reads "width,height" and "duration" lines in either order.
func ParseProbeOutput(output string) (*VideoInfo, error) {
	info := &VideoInfo{}
	var haveSize, haveDuration bool
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), ",")
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		switch len(parts) {
		case 2:
			width, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid width: %v", err)
			}
			height, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid height: %v", err)
			}
			info.Width, info.Height, haveSize = width, height, true
		case 1:
			duration, err := strconv.ParseFloat(parts[0], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid duration: %v", err)
			}
			info.Duration, haveDuration = duration, true
		default:
			return nil, fmt.Errorf("unexpected ffprobe output: %s", line)
		}
	}
	if !haveSize || !haveDuration {
		return nil, fmt.Errorf("unexpected ffprobe output: %s", strings.TrimSpace(output))
	}
	return info, nil
}
