package media

import (
	"fmt"
	"strconv"

	"github.com/your-org/photoflow/internal/config"
)

// EncodeOptions carries the ffmpeg arguments for one conversion, split
// around the -i flag.
type EncodeOptions struct {
	InputArgs  []string
	OutputArgs []string
}

// DeviceContext describes the render hardware found on this host.
type DeviceContext struct {
	// RenderDevices are the DRM render nodes under /dev/dri.
	RenderDevices []string
	// HasOpenCL is true when a Mali OpenCL runtime is installed.
	HasOpenCL bool
	// Accel is the acceleration API to use for this run. It may differ
	// from the configured one after a failed hardware attempt.
	Accel config.HWAccel
}

// RemuxOptions repackages streams into an mp4 container without
// re-encoding.
func RemuxOptions() EncodeOptions {
	return EncodeOptions{
		OutputArgs: []string{
			"-c:v", "copy",
			"-c:a", "copy",
			"-movflags", "faststart",
		},
	}
}

// EncodeCommand builds the conversion arguments for the given target.
// Streams not covered by the target are copied through untouched.
func EncodeCommand(cfg config.FFmpegConfig, target TranscodeTarget, stream *VideoStreamInfo, dev DeviceContext) EncodeOptions {
	opts := EncodeOptions{}

	encodeVideo := target == TargetVideo || target == TargetAll
	encodeAudio := target == TargetAudio || target == TargetAll

	if encodeVideo {
		opts.InputArgs = append(opts.InputArgs, hwInputArgs(cfg, dev)...)
		opts.OutputArgs = append(opts.OutputArgs, "-c:v", videoCodec(cfg, dev.Accel))
		opts.OutputArgs = append(opts.OutputArgs, qualityArgs(cfg, dev.Accel)...)

		if filter := videoFilter(cfg, stream, dev); filter != "" {
			opts.OutputArgs = append(opts.OutputArgs, "-vf", filter)
		}
	} else {
		opts.OutputArgs = append(opts.OutputArgs, "-c:v", "copy")
	}

	if encodeAudio {
		opts.OutputArgs = append(opts.OutputArgs, "-c:a", cfg.TargetAudioCodec)
	} else {
		opts.OutputArgs = append(opts.OutputArgs, "-c:a", "copy")
	}

	if cfg.Threads > 0 {
		opts.OutputArgs = append(opts.OutputArgs, "-threads", strconv.Itoa(cfg.Threads))
	}

	if maxBitrate := ParseBitrateToBps(cfg.MaxBitrate); maxBitrate > 0 && encodeVideo {
		opts.OutputArgs = append(opts.OutputArgs,
			"-maxrate", strconv.Itoa(maxBitrate),
			"-bufsize", strconv.Itoa(2*maxBitrate),
		)
	}

	opts.OutputArgs = append(opts.OutputArgs, "-movflags", "faststart")
	return opts
}

func hwInputArgs(cfg config.FFmpegConfig, dev DeviceContext) []string {
	device := dev.PreferredDevice(cfg.PreferredHWDevice)

	switch dev.Accel {
	case config.HWAccelNVENC:
		return []string{"-hwaccel", "cuda"}
	case config.HWAccelQSV:
		if device == "" {
			return nil
		}
		return []string{"-init_hw_device", "qsv=hw,child_device=" + device}
	case config.HWAccelVAAPI:
		if device == "" {
			return nil
		}
		return []string{"-vaapi_device", "/dev/dri/" + device}
	default:
		return nil
	}
}

// PreferredDevice picks the configured render node when present,
// otherwise the first one found.
func (d DeviceContext) PreferredDevice(preferred string) string {
	for _, name := range d.RenderDevices {
		if name == preferred {
			return name
		}
	}
	if len(d.RenderDevices) > 0 {
		return d.RenderDevices[0]
	}
	return ""
}

func videoCodec(cfg config.FFmpegConfig, accel config.HWAccel) string {
	switch accel {
	case config.HWAccelNVENC:
		return cfg.TargetVideoCodec + "_nvenc"
	case config.HWAccelQSV:
		return cfg.TargetVideoCodec + "_qsv"
	case config.HWAccelVAAPI:
		return cfg.TargetVideoCodec + "_vaapi"
	case config.HWAccelRKMPP:
		return cfg.TargetVideoCodec + "_rkmpp"
	default:
		return "lib" + softwareCodecSuffix(cfg.TargetVideoCodec)
	}
}

func softwareCodecSuffix(codec string) string {
	switch codec {
	case "h264":
		return "x264"
	case "hevc":
		return "x265"
	case "vp9":
		return "vpx-vp9"
	default:
		return codec
	}
}

func qualityArgs(cfg config.FFmpegConfig, accel config.HWAccel) []string {
	switch accel {
	case config.HWAccelNVENC:
		return []string{"-cq:v", strconv.Itoa(cfg.CRF), "-preset", "p4"}
	case config.HWAccelQSV:
		return []string{"-global_quality", strconv.Itoa(cfg.CRF), "-preset", cfg.Preset}
	case config.HWAccelVAAPI:
		return []string{"-qp", strconv.Itoa(cfg.CRF)}
	case config.HWAccelRKMPP:
		return []string{"-qp_init", strconv.Itoa(cfg.CRF)}
	default:
		return []string{"-crf", strconv.Itoa(cfg.CRF), "-preset", cfg.Preset}
	}
}

// videoFilter builds the scale and tonemap chain. Scaling keeps aspect
// ratio and targets the shorter edge; tonemapping only runs for HDR
// input and never on pure remux/copy paths.
func videoFilter(cfg config.FFmpegConfig, stream *VideoStreamInfo, dev DeviceContext) string {
	var filters []string

	if cfg.TargetResolution != "original" {
		targetRes, err := strconv.Atoi(cfg.TargetResolution)
		if err == nil && stream != nil && min(stream.Width, stream.Height) > targetRes {
			if stream.Height >= stream.Width {
				filters = append(filters, fmt.Sprintf("scale=%d:-2", targetRes))
			} else {
				filters = append(filters, fmt.Sprintf("scale=-2:%d", targetRes))
			}
		}
	}

	if stream != nil && stream.IsHDR && cfg.Tonemap != "disabled" {
		tonemap := fmt.Sprintf("zscale=t=linear:npl=100,tonemap=%s:desat=0,zscale=p=bt709:t=bt709:m=bt709:r=tv", cfg.Tonemap)
		if dev.HasOpenCL {
			tonemap = fmt.Sprintf("hwupload,tonemap_opencl=tonemap=%s:desat=0:format=nv12,hwdownload,format=nv12", cfg.Tonemap)
		}
		filters = append(filters, tonemap, "format=yuv420p")
	}

	if len(filters) == 0 {
		return ""
	}

	joined := filters[0]
	for _, f := range filters[1:] {
		joined += "," + f
	}
	return joined
}
