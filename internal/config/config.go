package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	NATS            NATSConfig            `yaml:"nats"`
	MinIO           MinIOConfig           `yaml:"minio"`
	Storage         StorageConfig         `yaml:"storage"`
	FFmpeg          FFmpegConfig          `yaml:"ffmpeg"`
	MachineLearning MachineLearningConfig `yaml:"machine_learning"`
	Job             JobConfig             `yaml:"job"`
	Logging         LoggingConfig         `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type StorageConfig struct {
	// MediaDir is the root of the local working tree where originals live
	// and derived artifacts are rendered before upload.
	MediaDir string `yaml:"media_dir"`
}

// TranscodePolicy controls when video conversion happens.
type TranscodePolicy string

const (
	TranscodePolicyAll      TranscodePolicy = "all"
	TranscodePolicyOptimal  TranscodePolicy = "optimal"
	TranscodePolicyBitrate  TranscodePolicy = "bitrate"
	TranscodePolicyRequired TranscodePolicy = "required"
	TranscodePolicyDisabled TranscodePolicy = "disabled"
)

// HWAccel selects the hardware acceleration API for encoding.
type HWAccel string

const (
	HWAccelNVENC    HWAccel = "nvenc"
	HWAccelQSV      HWAccel = "qsv"
	HWAccelVAAPI    HWAccel = "vaapi"
	HWAccelRKMPP    HWAccel = "rkmpp"
	HWAccelDisabled HWAccel = "disabled"
)

type FFmpegConfig struct {
	CRF                 int             `yaml:"crf"`
	Threads             int             `yaml:"threads"`
	Preset              string          `yaml:"preset"`
	TargetVideoCodec    string          `yaml:"target_video_codec"`
	AcceptedVideoCodecs []string        `yaml:"accepted_video_codecs"`
	TargetAudioCodec    string          `yaml:"target_audio_codec"`
	AcceptedAudioCodecs []string        `yaml:"accepted_audio_codecs"`
	AcceptedContainers  []string        `yaml:"accepted_containers"`
	TargetResolution    string          `yaml:"target_resolution"`
	MaxBitrate          string          `yaml:"max_bitrate"`
	Transcode           TranscodePolicy `yaml:"transcode"`
	Accel               HWAccel         `yaml:"accel"`
	PreferredHWDevice   string          `yaml:"preferred_hw_device"`
	Tonemap             string          `yaml:"tonemap"`
}

type FacialRecognitionConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ModelName   string  `yaml:"model_name"`
	MinScore    float64 `yaml:"min_score"`
	MinFaces    int     `yaml:"min_faces"`
	MaxDistance float64 `yaml:"max_distance"`
}

type MachineLearningConfig struct {
	Enabled           bool                    `yaml:"enabled"`
	URL               string                  `yaml:"url"`
	FacialRecognition FacialRecognitionConfig `yaml:"facial_recognition"`
}

// JobConfig holds the worker concurrency for each named queue. Every queue
// gets its own fixed pool; queues never borrow capacity from each other.
type JobConfig struct {
	Concurrency map[string]int `yaml:"concurrency"`
	// Attempts is the retry budget for a handler that returns an error.
	Attempts int `yaml:"attempts"`
	// PageSize bounds producer pagination over assets/faces/persons.
	PageSize int `yaml:"page_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Default returns a config with all defaults applied and no file read.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Storage.MediaDir == "" {
		cfg.Storage.MediaDir = "/data/media"
	}
	if cfg.FFmpeg.CRF == 0 {
		cfg.FFmpeg.CRF = 23
	}
	if cfg.FFmpeg.Preset == "" {
		cfg.FFmpeg.Preset = "ultrafast"
	}
	if cfg.FFmpeg.TargetVideoCodec == "" {
		cfg.FFmpeg.TargetVideoCodec = "h264"
	}
	if len(cfg.FFmpeg.AcceptedVideoCodecs) == 0 {
		cfg.FFmpeg.AcceptedVideoCodecs = []string{"h264"}
	}
	if cfg.FFmpeg.TargetAudioCodec == "" {
		cfg.FFmpeg.TargetAudioCodec = "aac"
	}
	if len(cfg.FFmpeg.AcceptedAudioCodecs) == 0 {
		cfg.FFmpeg.AcceptedAudioCodecs = []string{"aac", "mp3", "libopus"}
	}
	if len(cfg.FFmpeg.AcceptedContainers) == 0 {
		cfg.FFmpeg.AcceptedContainers = []string{"mov", "ogg", "webm"}
	}
	if cfg.FFmpeg.TargetResolution == "" {
		cfg.FFmpeg.TargetResolution = "720"
	}
	if cfg.FFmpeg.MaxBitrate == "" {
		cfg.FFmpeg.MaxBitrate = "0"
	}
	if cfg.FFmpeg.Transcode == "" {
		cfg.FFmpeg.Transcode = TranscodePolicyRequired
	}
	if cfg.FFmpeg.Accel == "" {
		cfg.FFmpeg.Accel = HWAccelDisabled
	}
	if cfg.FFmpeg.Tonemap == "" {
		cfg.FFmpeg.Tonemap = "hable"
	}
	if cfg.MachineLearning.URL == "" {
		cfg.MachineLearning.URL = "http://localhost:3003"
	}
	if cfg.MachineLearning.FacialRecognition.ModelName == "" {
		cfg.MachineLearning.FacialRecognition.ModelName = "buffalo_l"
	}
	if cfg.MachineLearning.FacialRecognition.MinScore == 0 {
		cfg.MachineLearning.FacialRecognition.MinScore = 0.7
	}
	if cfg.MachineLearning.FacialRecognition.MinFaces == 0 {
		cfg.MachineLearning.FacialRecognition.MinFaces = 3
	}
	if cfg.MachineLearning.FacialRecognition.MaxDistance == 0 {
		cfg.MachineLearning.FacialRecognition.MaxDistance = 0.5
	}
	if cfg.Job.Concurrency == nil {
		cfg.Job.Concurrency = map[string]int{}
	}
	if cfg.Job.Attempts == 0 {
		cfg.Job.Attempts = 3
	}
	if cfg.Job.PageSize == 0 {
		cfg.Job.PageSize = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PF_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PF_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PF_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PF_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PF_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PF_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PF_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PF_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PF_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PF_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PF_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PF_MEDIA_DIR"); v != "" {
		cfg.Storage.MediaDir = v
	}
	if v := os.Getenv("PF_ML_URL"); v != "" {
		cfg.MachineLearning.URL = v
	}
}
