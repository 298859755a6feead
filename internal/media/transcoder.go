package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Transcoder wraps the ffmpeg and ffprobe binaries.
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
}

func NewTranscoder() *Transcoder {
	return &Transcoder{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// Transcode runs ffmpeg with the given input/output options and blocks
// until it finishes.
func (t *Transcoder) Transcode(ctx context.Context, input, output string, opts EncodeOptions) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
	}
	args = append(args, opts.InputArgs...)
	args = append(args, "-i", input)
	args = append(args, opts.OutputArgs...)
	args = append(args, output)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var tail bytes.Buffer
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Warn("ffmpeg stderr", "output", line)
		tail.Reset()
		tail.WriteString(line)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", input, err, tail.String())
	}
	return nil
}

// ExtractVideoFrame renders a single frame at the given offset to a JPEG.
// Used for video previews before thumbnail generation.
func (t *Transcoder) ExtractVideoFrame(ctx context.Context, input, output string, offsetSeconds float64) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", fmt.Sprintf("%.3f", offsetSeconds),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("extract frame from %s: %w: %s", input, err, stderr.String())
	}
	return nil
}
