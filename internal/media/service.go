package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/observability"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

// Store is the persistence surface the media handlers need.
type Store interface {
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetAssets(ctx context.Context, limit, offset int, scope storage.AssetScope) ([]models.Asset, error)
	GetAssetsWithout(ctx context.Context, limit, offset int, without storage.WithoutProperty) ([]models.Asset, error)
	UpdateAsset(ctx context.Context, id uuid.UUID, update storage.AssetUpdate) error
	UpsertAssetJobStatus(ctx context.Context, assetID uuid.UUID, update storage.JobStatusUpdate) error
	GetPersons(ctx context.Context, limit, offset int, missingThumbnail bool) ([]models.Person, error)
	GetRandomFace(ctx context.Context, personID uuid.UUID) (*models.Face, error)
	UpdatePerson(ctx context.Context, id uuid.UUID, update storage.PersonUpdate) error
}

// JobQueue enqueues follow-up work.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
	EnqueueAll(ctx context.Context, jobs []queue.Job) error
}

// Encoder abstracts the ffmpeg/ffprobe binaries.
type Encoder interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
	Transcode(ctx context.Context, input, output string, opts EncodeOptions) error
	ExtractVideoFrame(ctx context.Context, input, output string, offsetSeconds float64) error
}

// BlobStore mirrors derived artifacts to object storage.
type BlobStore interface {
	PutFile(ctx context.Context, key, path, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	DeleteObjects(ctx context.Context, keys []string) error
}

// Service runs the thumbnail and video-conversion queues.
type Service struct {
	store   Store
	jobs    JobQueue
	encoder Encoder
	blob    BlobStore
	local   *storage.LocalStore
	cfg     *config.Config

	devOnce    sync.Once
	devices    []string
	openCLOnce sync.Once
	openCL     bool
}

func NewService(store Store, jobs JobQueue, encoder Encoder, blob BlobStore, local *storage.LocalStore, cfg *config.Config) *Service {
	return &Service{
		store:   store,
		jobs:    jobs,
		encoder: encoder,
		blob:    blob,
		local:   local,
		cfg:     cfg,
	}
}

// Register binds the media job handlers onto their queues.
func (s *Service) Register(m *queue.Manager) {
	m.Register(queue.JobQueueGenerateThumbnails, s.HandleQueueGenerateThumbnails)
	m.Register(queue.JobGeneratePreview, s.HandleGeneratePreview)
	m.Register(queue.JobGenerateThumbnail, s.HandleGenerateThumbnail)
	m.Register(queue.JobQueueVideoConversion, s.HandleQueueVideoConversion)
	m.Register(queue.JobVideoConversion, s.HandleVideoConversion)
	m.Register(queue.JobDeleteFiles, s.HandleDeleteFiles)
}

// HandleQueueGenerateThumbnails pages over assets missing previews or
// thumbnails and fans out per-asset jobs. It also sweeps persons without a
// rendered thumbnail, picking a random feature face for any person that
// lost its old one.
func (s *Service) HandleQueueGenerateThumbnails(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.ScanJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	pageSize := s.cfg.Job.PageSize
	for offset := 0; ; offset += pageSize {
		var (
			assets []models.Asset
			err    error
		)
		if job.Force {
			assets, err = s.store.GetAssets(ctx, pageSize, offset, storage.AssetScope{WithArchived: true})
		} else {
			assets, err = s.store.GetAssetsWithout(ctx, pageSize, offset, storage.WithoutThumbnail)
		}
		if err != nil {
			return "", err
		}

		jobs := make([]queue.Job, 0, len(assets))
		for _, a := range assets {
			if a.PreviewPath == "" || job.Force {
				jobs = append(jobs, queue.Job{Name: queue.JobGeneratePreview, Data: models.AssetJob{AssetID: a.ID}})
			} else {
				jobs = append(jobs, queue.Job{Name: queue.JobGenerateThumbnail, Data: models.AssetJob{AssetID: a.ID}})
			}
		}
		if err := s.jobs.EnqueueAll(ctx, jobs); err != nil {
			return "", err
		}

		if len(assets) < pageSize {
			break
		}
	}

	for offset := 0; ; offset += pageSize {
		persons, err := s.store.GetPersons(ctx, pageSize, offset, !job.Force)
		if err != nil {
			return "", err
		}

		jobs := make([]queue.Job, 0, len(persons))
		for _, p := range persons {
			if p.FaceID == nil {
				face, err := s.store.GetRandomFace(ctx, p.ID)
				if err != nil {
					return "", err
				}
				if face == nil {
					continue
				}
				if err := s.store.UpdatePerson(ctx, p.ID, storage.PersonUpdate{FaceID: &face.ID}); err != nil {
					return "", err
				}
			}
			jobs = append(jobs, queue.Job{Name: queue.JobGeneratePersonThumbnail, Data: models.PersonJob{PersonID: p.ID}})
		}
		if err := s.jobs.EnqueueAll(ctx, jobs); err != nil {
			return "", err
		}

		if len(persons) < pageSize {
			break
		}
	}

	return models.JobStatusSuccess, nil
}

// HandleGeneratePreview renders the full-size preview for one asset and
// chains a thumbnail job behind it. Video previews come from a frame
// extracted at the middle of the stream.
func (s *Service) HandleGeneratePreview(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.AssetJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	asset, err := s.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return models.JobStatusFailed, nil
	}
	if !asset.IsVisible {
		return models.JobStatusSkipped, nil
	}

	newPath := s.derivedPath(asset, "preview.jpg")
	if err := s.local.EnsureDir(newPath); err != nil {
		return "", err
	}

	switch asset.Type {
	case models.AssetTypeVideo:
		if err := s.renderVideoPreview(ctx, asset.OriginalPath, newPath); err != nil {
			return "", err
		}
	default:
		if err := GenerateImage(asset.OriginalPath, newPath, PreviewSize); err != nil {
			return "", err
		}
	}

	if err := s.replaceArtifact(ctx, asset.PreviewPath, newPath); err != nil {
		return "", err
	}
	if err := s.store.UpdateAsset(ctx, asset.ID, storage.AssetUpdate{PreviewPath: &newPath}); err != nil {
		return "", err
	}
	now := time.Now()
	if err := s.store.UpsertAssetJobStatus(ctx, asset.ID, storage.JobStatusUpdate{PreviewAt: &now}); err != nil {
		return "", err
	}

	if err := s.jobs.Enqueue(ctx, queue.Job{Name: queue.JobGenerateThumbnail, Data: models.AssetJob{AssetID: asset.ID}}); err != nil {
		return "", err
	}
	return models.JobStatusSuccess, nil
}

// HandleGenerateThumbnail renders the grid thumbnail from the preview.
func (s *Service) HandleGenerateThumbnail(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.AssetJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	asset, err := s.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return models.JobStatusFailed, nil
	}
	if !asset.IsVisible {
		return models.JobStatusSkipped, nil
	}
	if asset.PreviewPath == "" {
		return models.JobStatusFailed, nil
	}

	newPath := s.derivedPath(asset, "thumbnail.jpg")
	if err := s.local.EnsureDir(newPath); err != nil {
		return "", err
	}
	if err := GenerateImage(asset.PreviewPath, newPath, ThumbnailSize); err != nil {
		return "", err
	}

	if err := s.replaceArtifact(ctx, asset.ThumbnailPath, newPath); err != nil {
		return "", err
	}
	if err := s.store.UpdateAsset(ctx, asset.ID, storage.AssetUpdate{ThumbnailPath: &newPath}); err != nil {
		return "", err
	}
	now := time.Now()
	if err := s.store.UpsertAssetJobStatus(ctx, asset.ID, storage.JobStatusUpdate{ThumbnailAt: &now}); err != nil {
		return "", err
	}
	return models.JobStatusSuccess, nil
}

// HandleQueueVideoConversion fans out per-video conversion jobs.
func (s *Service) HandleQueueVideoConversion(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.ScanJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	pageSize := s.cfg.Job.PageSize
	videoType := models.AssetTypeVideo
	for offset := 0; ; offset += pageSize {
		var (
			assets []models.Asset
			err    error
		)
		if job.Force {
			assets, err = s.store.GetAssets(ctx, pageSize, offset, storage.AssetScope{Type: &videoType, WithArchived: true})
		} else {
			assets, err = s.store.GetAssetsWithout(ctx, pageSize, offset, storage.WithoutEncodedVideo)
		}
		if err != nil {
			return "", err
		}

		jobs := make([]queue.Job, 0, len(assets))
		for _, a := range assets {
			jobs = append(jobs, queue.Job{Name: queue.JobVideoConversion, Data: models.AssetJob{AssetID: a.ID}})
		}
		if err := s.jobs.EnqueueAll(ctx, jobs); err != nil {
			return "", err
		}

		if len(assets) < pageSize {
			break
		}
	}
	return models.JobStatusSuccess, nil
}

// HandleVideoConversion probes one video, decides whether it needs a
// re-encode or a remux under the current policy, and produces the encoded
// artifact. An existing artifact that the current policy no longer calls
// for is deleted so a policy change converges in both directions.
func (s *Service) HandleVideoConversion(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.AssetJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	asset, err := s.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return models.JobStatusFailed, nil
	}
	if asset.Type != models.AssetTypeVideo {
		return models.JobStatusSkipped, nil
	}

	probe, err := s.encoder.Probe(ctx, asset.OriginalPath)
	if err != nil {
		return "", err
	}
	mainVideo := MainVideoStream(probe.VideoStreams)
	mainAudio := MainAudioStream(probe.AudioStreams)
	if mainVideo == nil {
		return models.JobStatusFailed, nil
	}

	ffCfg := s.cfg.FFmpeg
	target := GetTranscodeTarget(ffCfg, mainVideo, mainAudio)
	remux := IsRemuxRequired(ffCfg, probe.Format)

	if target == TargetNone && !remux {
		if asset.EncodedVideoPath != "" {
			if err := s.removeArtifact(ctx, asset.EncodedVideoPath); err != nil {
				return "", err
			}
			empty := ""
			if err := s.store.UpdateAsset(ctx, asset.ID, storage.AssetUpdate{EncodedVideoPath: &empty}); err != nil {
				return "", err
			}
		}
		return models.JobStatusSkipped, nil
	}

	output := s.derivedVideoPath(asset)
	if err := s.local.EnsureDir(output); err != nil {
		return "", err
	}

	// Encode to a temp path so an interrupted run never leaves a partial
	// artifact at the final location.
	tmp := output + ".tmp"
	if err := s.runConversion(ctx, asset.OriginalPath, tmp, target, mainVideo); err != nil {
		_ = s.local.Unlink(tmp)
		return "", err
	}
	if err := s.local.MoveOrRename(tmp, output); err != nil {
		return "", err
	}

	if err := s.blob.PutFile(ctx, s.blobKey(output), output, "video/mp4"); err != nil {
		return "", err
	}
	if err := s.store.UpdateAsset(ctx, asset.ID, storage.AssetUpdate{EncodedVideoPath: &output}); err != nil {
		return "", err
	}

	observability.VideosTranscoded.WithLabelValues(target.String()).Inc()
	return models.JobStatusSuccess, nil
}

// runConversion executes the encode, retrying exactly once in software if
// the hardware path fails.
func (s *Service) runConversion(ctx context.Context, input, output string, target TranscodeTarget, stream *VideoStreamInfo) error {
	ffCfg := s.cfg.FFmpeg
	dev := DeviceContext{
		RenderDevices: s.renderDevices(),
		HasOpenCL:     s.hasOpenCL(),
		Accel:         ffCfg.Accel,
	}

	var opts EncodeOptions
	if target == TargetNone {
		opts = RemuxOptions()
	} else {
		opts = EncodeCommand(ffCfg, target, stream, dev)
	}

	err := s.encoder.Transcode(ctx, input, output, opts)
	if err == nil || target == TargetNone || dev.Accel == config.HWAccelDisabled {
		return err
	}

	slog.Warn("hardware transcode failed, retrying in software", "input", input, "error", err)
	dev.Accel = config.HWAccelDisabled
	opts = EncodeCommand(ffCfg, target, stream, dev)
	return s.encoder.Transcode(ctx, input, output, opts)
}

// HandleDeleteFiles removes derived artifacts from the working tree and
// the blob mirror.
func (s *Service) HandleDeleteFiles(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.FileJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	keys := make([]string, 0, len(job.Paths))
	for _, path := range job.Paths {
		if path == "" {
			continue
		}
		if err := s.local.Unlink(path); err != nil {
			return "", err
		}
		keys = append(keys, s.blobKey(path))
	}
	if len(keys) == 0 {
		return models.JobStatusSuccess, nil
	}
	if err := s.blob.DeleteObjects(ctx, keys); err != nil {
		return "", err
	}
	return models.JobStatusSuccess, nil
}

func (s *Service) renderVideoPreview(ctx context.Context, input, output string) error {
	probe, err := s.encoder.Probe(ctx, input)
	if err != nil {
		return err
	}
	offset := probe.Format.Duration / 2
	if err := s.encoder.ExtractVideoFrame(ctx, input, output, offset); err != nil {
		return err
	}
	// The extracted frame is full resolution; bring it down to preview size.
	return GenerateImage(output, output, PreviewSize)
}

// replaceArtifact uploads the new artifact and removes a superseded one at
// a different path.
func (s *Service) replaceArtifact(ctx context.Context, oldPath, newPath string) error {
	if err := s.blob.PutFile(ctx, s.blobKey(newPath), newPath, "image/jpeg"); err != nil {
		return err
	}
	if oldPath != "" && oldPath != newPath {
		if err := s.removeArtifact(ctx, oldPath); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) removeArtifact(ctx context.Context, path string) error {
	if err := s.local.Unlink(path); err != nil {
		return err
	}
	return s.blob.DeleteObject(ctx, s.blobKey(path))
}

// derivedPath places an asset artifact under <root>/thumbs/<owner>/<asset>-<suffix>.
func (s *Service) derivedPath(asset *models.Asset, suffix string) string {
	return filepath.Join(s.local.Root(), "thumbs", asset.OwnerID.String(),
		fmt.Sprintf("%s-%s", asset.ID, suffix))
}

func (s *Service) derivedVideoPath(asset *models.Asset) string {
	return filepath.Join(s.local.Root(), "encoded-video", asset.OwnerID.String(),
		asset.ID.String()+".mp4")
}

// blobKey maps a working-tree path to its object key in the mirror.
func (s *Service) blobKey(path string) string {
	rel := strings.TrimPrefix(path, s.local.Root())
	return strings.TrimPrefix(rel, "/")
}

// renderDevices lists DRM render nodes once per process. The set of
// devices does not change while the worker runs.
func (s *Service) renderDevices() []string {
	s.devOnce.Do(func() {
		names, err := s.local.ReadDir("/dev/dri")
		if err != nil {
			return
		}
		for _, name := range names {
			if strings.HasPrefix(name, "renderD") || strings.HasPrefix(name, "card") {
				s.devices = append(s.devices, name)
			}
		}
	})
	return s.devices
}

// hasOpenCL reports whether a Mali OpenCL runtime is installed, checked
// once per process.
func (s *Service) hasOpenCL() bool {
	s.openCLOnce.Do(func() {
		if _, err := s.local.Stat("/etc/OpenCL/vendors/mali.icd"); err != nil {
			return
		}
		if _, err := s.local.Stat("/dev/mali0"); err != nil {
			return
		}
		s.openCL = true
	})
	return s.openCL
}
