package media

import (
	"slices"
	"strconv"
	"strings"

	"github.com/your-org/photoflow/internal/config"
)

// TranscodeTarget says which streams a conversion must re-encode.
type TranscodeTarget int

const (
	TargetNone TranscodeTarget = iota
	TargetAudio
	TargetVideo
	TargetAll
)

func (t TranscodeTarget) String() string {
	switch t {
	case TargetAudio:
		return "audio"
	case TargetVideo:
		return "video"
	case TargetAll:
		return "all"
	default:
		return "none"
	}
}

// MainVideoStream picks the stream with the highest frame count, ties
// broken by encounter order. This drops commentary and preview tracks
// deterministically.
func MainVideoStream(streams []VideoStreamInfo) *VideoStreamInfo {
	var main *VideoStreamInfo
	for i := range streams {
		if main == nil || streams[i].FrameCount > main.FrameCount {
			main = &streams[i]
		}
	}
	return main
}

// MainAudioStream picks the audio stream with the highest frame count.
func MainAudioStream(streams []AudioStreamInfo) *AudioStreamInfo {
	var main *AudioStreamInfo
	for i := range streams {
		if main == nil || streams[i].FrameCount > main.FrameCount {
			main = &streams[i]
		}
	}
	return main
}

// GetTranscodeTarget combines the per-stream requirements into the overall
// conversion target.
func GetTranscodeTarget(cfg config.FFmpegConfig, videoStream *VideoStreamInfo, audioStream *AudioStreamInfo) TranscodeTarget {
	if videoStream == nil && audioStream == nil {
		return TargetNone
	}

	videoRequired := IsVideoTranscodeRequired(cfg, videoStream)
	audioRequired := IsAudioTranscodeRequired(cfg, audioStream)

	switch {
	case videoRequired && audioRequired:
		return TargetAll
	case videoRequired:
		return TargetVideo
	case audioRequired:
		return TargetAudio
	default:
		return TargetNone
	}
}

// IsVideoTranscodeRequired applies the policy mode to one video stream.
// Codec mismatch and HDR always require conversion (outside DISABLED);
// OPTIMAL adds a resolution ceiling, BITRATE a bitrate ceiling.
func IsVideoTranscodeRequired(cfg config.FFmpegConfig, stream *VideoStreamInfo) bool {
	if stream == nil {
		return false
	}

	isAcceptedCodec := slices.Contains(cfg.AcceptedVideoCodecs, stream.CodecName)
	isRequired := !isAcceptedCodec || stream.IsHDR

	scalingEnabled := cfg.TargetResolution != "original"
	targetRes, _ := strconv.Atoi(cfg.TargetResolution)
	isLargerThanTargetRes := scalingEnabled && min(stream.Height, stream.Width) > targetRes
	isLargerThanTargetBitrate := stream.Bitrate > ParseBitrateToBps(cfg.MaxBitrate)

	switch cfg.Transcode {
	case config.TranscodePolicyDisabled:
		return false
	case config.TranscodePolicyAll:
		return true
	case config.TranscodePolicyRequired:
		return isRequired
	case config.TranscodePolicyOptimal:
		return isRequired || isLargerThanTargetRes
	case config.TranscodePolicyBitrate:
		return isRequired || isLargerThanTargetBitrate
	default:
		return false
	}
}

// IsAudioTranscodeRequired applies the policy mode to one audio stream.
func IsAudioTranscodeRequired(cfg config.FFmpegConfig, stream *AudioStreamInfo) bool {
	if stream == nil {
		return false
	}

	switch cfg.Transcode {
	case config.TranscodePolicyDisabled:
		return false
	case config.TranscodePolicyAll:
		return true
	default:
		return !slices.Contains(cfg.AcceptedAudioCodecs, stream.CodecName)
	}
}

// IsRemuxRequired decides container-only repackaging. MP4 is always
// accepted on top of the configured container list.
func IsRemuxRequired(cfg config.FFmpegConfig, format VideoFormat) bool {
	if cfg.Transcode == config.TranscodePolicyDisabled {
		return false
	}

	name := format.FormatName
	if format.FormatLongName == "QuickTime / MOV" {
		name = "mov"
	}
	return name != "mp4" && !slices.Contains(cfg.AcceptedContainers, name)
}

// ParseBitrateToBps parses a bitrate string with an optional k/M suffix.
// A fractional value truncates to its integer part before the multiplier
// applies, so "2.5M" means 2 Mbps. Unparseable input means no ceiling, so
// it returns 0.
func ParseBitrateToBps(bitrate string) int {
	lower := strings.ToLower(bitrate)
	multiplier := 1
	switch {
	case strings.HasSuffix(lower, "k"):
		multiplier = 1000
		lower = strings.TrimSuffix(lower, "k")
	case strings.HasSuffix(lower, "m"):
		multiplier = 1_000_000
		lower = strings.TrimSuffix(lower, "m")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(lower), 64)
	if err != nil || value < 0 {
		return 0
	}
	return int(value) * multiplier
}
