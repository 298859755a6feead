package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoStreamInfo describes one probed video stream.
type VideoStreamInfo struct {
	Index      int
	CodecName  string
	Width      int
	Height     int
	Bitrate    int
	FrameCount int
	IsHDR      bool
}

// AudioStreamInfo describes one probed audio stream.
type AudioStreamInfo struct {
	Index      int
	CodecName  string
	Bitrate    int
	FrameCount int
}

// VideoFormat describes the container of a probed file.
type VideoFormat struct {
	FormatName     string
	FormatLongName string
	Duration       float64
	Bitrate        int
}

// ProbeResult is the full stream/format picture for one media file.
type ProbeResult struct {
	VideoStreams []VideoStreamInfo
	AudioStreams []AudioStreamInfo
	Format       VideoFormat
}

type ffprobeOutput struct {
	Streams []struct {
		Index         int    `json:"index"`
		CodecName     string `json:"codec_name"`
		CodecType     string `json:"codec_type"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		BitRate       string `json:"bit_rate"`
		NbFrames      string `json:"nb_frames"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		ColorTransfer string `json:"color_transfer"`
		ColorPrimaries string `json:"color_primaries"`
	} `json:"streams"`
	Format struct {
		FormatName     string `json:"format_name"`
		FormatLongName string `json:"format_long_name"`
		Duration       string `json:"duration"`
		BitRate        string `json:"bit_rate"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe.
func (t *Transcoder) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-hide_banner",
		"-loglevel", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	duration, _ := strconv.ParseFloat(out.Format.Duration, 64)
	result.Format = VideoFormat{
		FormatName:     out.Format.FormatName,
		FormatLongName: out.Format.FormatLongName,
		Duration:       duration,
		Bitrate:        atoiSafe(out.Format.BitRate),
	}

	for _, s := range out.Streams {
		frameCount := atoiSafe(s.NbFrames)
		if frameCount == 0 && duration > 0 {
			// Some containers don't carry nb_frames; estimate from the
			// average frame rate.
			frameCount = int(duration * parseFrameRate(s.AvgFrameRate))
		}

		switch s.CodecType {
		case "video":
			result.VideoStreams = append(result.VideoStreams, VideoStreamInfo{
				Index:      s.Index,
				CodecName:  s.CodecName,
				Width:      s.Width,
				Height:     s.Height,
				Bitrate:    atoiSafe(s.BitRate),
				FrameCount: frameCount,
				IsHDR:      isHDR(s.ColorTransfer, s.ColorPrimaries),
			})
		case "audio":
			result.AudioStreams = append(result.AudioStreams, AudioStreamInfo{
				Index:      s.Index,
				CodecName:  s.CodecName,
				Bitrate:    atoiSafe(s.BitRate),
				FrameCount: frameCount,
			})
		}
	}

	return result, nil
}

func isHDR(colorTransfer, colorPrimaries string) bool {
	switch colorTransfer {
	case "smpte2084", "arib-std-b67":
		return true
	}
	return colorPrimaries == "bt2020"
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parseFrameRate parses ffprobe's "num/den" rational frame rate.
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
