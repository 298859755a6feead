package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/photoflow/internal/config"
)

func testFFmpegConfig() config.FFmpegConfig {
	return config.FFmpegConfig{
		TargetVideoCodec:    "h264",
		AcceptedVideoCodecs: []string{"h264"},
		TargetAudioCodec:    "aac",
		AcceptedAudioCodecs: []string{"aac", "mp3", "libopus"},
		AcceptedContainers:  []string{"mov", "ogg", "webm"},
		TargetResolution:    "720",
		MaxBitrate:          "0",
		Transcode:           config.TranscodePolicyRequired,
	}
}

func TestMainVideoStream(t *testing.T) {
	streams := []VideoStreamInfo{
		{Index: 0, FrameCount: 10},
		{Index: 1, FrameCount: 50},
		{Index: 2, FrameCount: 30},
	}
	assert.Equal(t, 1, MainVideoStream(streams).Index)

	ties := []VideoStreamInfo{
		{Index: 0, FrameCount: 50},
		{Index: 1, FrameCount: 50},
	}
	assert.Equal(t, 0, MainVideoStream(ties).Index, "ties go to the first stream")

	assert.Nil(t, MainVideoStream(nil))
}

func TestMainAudioStream(t *testing.T) {
	streams := []AudioStreamInfo{
		{Index: 1, FrameCount: 100},
		{Index: 2, FrameCount: 400},
	}
	assert.Equal(t, 2, MainAudioStream(streams).Index)
	assert.Nil(t, MainAudioStream(nil))
}

func TestIsVideoTranscodeRequired(t *testing.T) {
	sdr := &VideoStreamInfo{CodecName: "h264", Width: 1920, Height: 1080}
	hdr := &VideoStreamInfo{CodecName: "h264", Width: 1920, Height: 1080, IsHDR: true}
	hevc := &VideoStreamInfo{CodecName: "hevc", Width: 1920, Height: 1080}
	small := &VideoStreamInfo{CodecName: "h264", Width: 854, Height: 480}

	tests := []struct {
		name   string
		policy config.TranscodePolicy
		stream *VideoStreamInfo
		want   bool
	}{
		{"disabled never transcodes", config.TranscodePolicyDisabled, hevc, false},
		{"disabled ignores hdr", config.TranscodePolicyDisabled, hdr, false},
		{"all always transcodes", config.TranscodePolicyAll, small, true},
		{"required accepts matching sdr codec", config.TranscodePolicyRequired, sdr, false},
		{"required rejects foreign codec", config.TranscodePolicyRequired, hevc, true},
		{"required rejects hdr", config.TranscodePolicyRequired, hdr, true},
		{"optimal passes small stream", config.TranscodePolicyOptimal, small, false},
		{"optimal scales down large stream", config.TranscodePolicyOptimal, sdr, true},
		{"nil stream never requires", config.TranscodePolicyAll, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testFFmpegConfig()
			cfg.Transcode = tt.policy
			assert.Equal(t, tt.want, IsVideoTranscodeRequired(cfg, tt.stream))
		})
	}
}

func TestIsVideoTranscodeRequiredOriginalResolution(t *testing.T) {
	cfg := testFFmpegConfig()
	cfg.Transcode = config.TranscodePolicyOptimal
	cfg.TargetResolution = "original"

	large := &VideoStreamInfo{CodecName: "h264", Width: 3840, Height: 2160}
	assert.False(t, IsVideoTranscodeRequired(cfg, large), "original resolution disables scaling")
}

func TestIsVideoTranscodeRequiredBitrate(t *testing.T) {
	cfg := testFFmpegConfig()
	cfg.Transcode = config.TranscodePolicyBitrate
	cfg.MaxBitrate = "2M"

	over := &VideoStreamInfo{CodecName: "h264", Width: 1280, Height: 720, Bitrate: 3_000_000}
	under := &VideoStreamInfo{CodecName: "h264", Width: 1280, Height: 720, Bitrate: 1_500_000}

	assert.True(t, IsVideoTranscodeRequired(cfg, over))
	assert.False(t, IsVideoTranscodeRequired(cfg, under))
}

func TestIsAudioTranscodeRequired(t *testing.T) {
	cfg := testFFmpegConfig()

	assert.False(t, IsAudioTranscodeRequired(cfg, &AudioStreamInfo{CodecName: "aac"}))
	assert.True(t, IsAudioTranscodeRequired(cfg, &AudioStreamInfo{CodecName: "flac"}))
	assert.False(t, IsAudioTranscodeRequired(cfg, nil))

	cfg.Transcode = config.TranscodePolicyAll
	assert.True(t, IsAudioTranscodeRequired(cfg, &AudioStreamInfo{CodecName: "aac"}))

	cfg.Transcode = config.TranscodePolicyDisabled
	assert.False(t, IsAudioTranscodeRequired(cfg, &AudioStreamInfo{CodecName: "flac"}))
}

func TestGetTranscodeTarget(t *testing.T) {
	cfg := testFFmpegConfig()

	video := &VideoStreamInfo{CodecName: "hevc", Width: 1920, Height: 1080}
	audio := &AudioStreamInfo{CodecName: "flac"}
	okVideo := &VideoStreamInfo{CodecName: "h264", Width: 1920, Height: 1080}
	okAudio := &AudioStreamInfo{CodecName: "aac"}

	assert.Equal(t, TargetAll, GetTranscodeTarget(cfg, video, audio))
	assert.Equal(t, TargetVideo, GetTranscodeTarget(cfg, video, okAudio))
	assert.Equal(t, TargetAudio, GetTranscodeTarget(cfg, okVideo, audio))
	assert.Equal(t, TargetNone, GetTranscodeTarget(cfg, okVideo, okAudio))
	assert.Equal(t, TargetNone, GetTranscodeTarget(cfg, nil, nil))
}

func TestIsRemuxRequired(t *testing.T) {
	cfg := testFFmpegConfig()

	assert.False(t, IsRemuxRequired(cfg, VideoFormat{FormatName: "mp4"}), "mp4 is always accepted")
	assert.False(t, IsRemuxRequired(cfg, VideoFormat{FormatName: "webm"}))
	assert.False(t, IsRemuxRequired(cfg, VideoFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2", FormatLongName: "QuickTime / MOV"}),
		"quicktime normalizes to mov")
	assert.True(t, IsRemuxRequired(cfg, VideoFormat{FormatName: "avi"}))

	cfg.Transcode = config.TranscodePolicyDisabled
	assert.False(t, IsRemuxRequired(cfg, VideoFormat{FormatName: "avi"}), "disabled policy never remuxes")
}

func TestParseBitrateToBps(t *testing.T) {
	assert.Equal(t, 4_500_000, ParseBitrateToBps("4500k"))
	assert.Equal(t, 4_500_000, ParseBitrateToBps("4500K"))
	assert.Equal(t, 2_000_000, ParseBitrateToBps("2M"))
	assert.Equal(t, 2_000_000, ParseBitrateToBps("2m"))
	assert.Equal(t, 2_000_000, ParseBitrateToBps("2.5M"), "fractional part truncates")
	assert.Equal(t, 4_000, ParseBitrateToBps("4.9k"))
	assert.Equal(t, 300, ParseBitrateToBps("300"))
	assert.Equal(t, 0, ParseBitrateToBps("0"))
	assert.Equal(t, 0, ParseBitrateToBps("garbage"))
	assert.Equal(t, 0, ParseBitrateToBps(""))
}
