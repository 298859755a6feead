package face

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/ml"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/observability"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

// lastRecognitionRunKey stores when the last recognition sweep finished.
// Nightly sweeps compare it against the newest face to decide whether
// anything new needs clustering.
const lastRecognitionRunKey = "facial-recognition-last-run"

type recognitionRunState struct {
	LastRun time.Time `json:"last_run"`
}

// Store is the persistence surface the face pipeline needs.
type Store interface {
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetAssets(ctx context.Context, limit, offset int, scope storage.AssetScope) ([]models.Asset, error)
	GetAssetsWithout(ctx context.Context, limit, offset int, without storage.WithoutProperty) ([]models.Asset, error)
	UpsertAssetJobStatus(ctx context.Context, assetID uuid.UUID, update storage.JobStatusUpdate) error

	CreateFaces(ctx context.Context, faces []models.Face) error
	CountAssetFaces(ctx context.Context, assetID uuid.UUID) (int, error)
	GetFace(ctx context.Context, id uuid.UUID) (*models.Face, error)
	GetFaces(ctx context.Context, limit, offset int, personless bool) ([]models.Face, error)
	GetRandomFace(ctx context.Context, personID uuid.UUID) (*models.Face, error)
	GetLatestFaceDate(ctx context.Context) (*time.Time, error)
	ReassignFaces(ctx context.Context, newPersonID uuid.UUID, faceIDs ...uuid.UUID) error
	ReassignPersonFaces(ctx context.Context, oldPersonID, newPersonID uuid.UUID) (int64, error)
	DeleteAllFaces(ctx context.Context) error
	SearchFaces(ctx context.Context, search storage.FaceSearch) ([]storage.FaceMatch, error)

	CreatePerson(ctx context.Context, ownerID uuid.UUID, faceID *uuid.UUID) (*models.Person, error)
	GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	UpdatePerson(ctx context.Context, id uuid.UUID, update storage.PersonUpdate) error
	GetPersons(ctx context.Context, limit, offset int, missingThumbnail bool) ([]models.Person, error)
	GetPersonsWithoutFaces(ctx context.Context) ([]models.Person, error)
	DeletePerson(ctx context.Context, id uuid.UUID) error
	DeleteAllPersons(ctx context.Context) error

	GetSystemMetadata(ctx context.Context, key string) (json.RawMessage, error)
	SetSystemMetadata(ctx context.Context, key string, value any) error
}

// JobQueue enqueues follow-up work and exposes queue progress for the
// cross-queue barrier before a recognition sweep.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
	EnqueueAll(ctx context.Context, jobs []queue.Job) error
	GetCounts(ctx context.Context, q queue.QueueName) (queue.Counts, error)
	WaitForDrain(ctx context.Context, queues ...queue.QueueName) error
}

// Detector is the remote inference endpoint.
type Detector interface {
	DetectFaces(ctx context.Context, url, imagePath string, cfg config.FacialRecognitionConfig) (*ml.DetectFacesResponse, error)
}

// BlobStore mirrors person thumbnails to object storage.
type BlobStore interface {
	PutFile(ctx context.Context, key, path, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// Service runs detection, recognition and person maintenance.
type Service struct {
	store    Store
	jobs     JobQueue
	detector Detector
	blob     BlobStore
	local    *storage.LocalStore
	cfg      *config.Config
}

func NewService(store Store, jobs JobQueue, detector Detector, blob BlobStore, local *storage.LocalStore, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		jobs:     jobs,
		detector: detector,
		blob:     blob,
		local:    local,
		cfg:      cfg,
	}
}

// Register binds the face job handlers onto their queues.
func (s *Service) Register(m *queue.Manager) {
	m.Register(queue.JobQueueFaceDetection, s.HandleQueueDetectFaces)
	m.Register(queue.JobFaceDetection, s.HandleDetectFaces)
	m.Register(queue.JobQueueFacialRecognition, s.HandleQueueRecognizeFaces)
	m.Register(queue.JobFacialRecognition, s.HandleRecognizeFaces)
	m.Register(queue.JobGeneratePersonThumbnail, s.HandleGeneratePersonThumbnail)
	m.Register(queue.JobPersonCleanup, s.HandlePersonCleanup)
}

func (s *Service) enabled() bool {
	return s.cfg.MachineLearning.Enabled && s.cfg.MachineLearning.FacialRecognition.Enabled
}

// HandleQueueDetectFaces pages over assets that have not been through
// detection and fans out per-asset jobs. Force clears every face and
// person first and re-detects the whole library.
func (s *Service) HandleQueueDetectFaces(ctx context.Context, payload []byte) (models.JobStatus, error) {
	if !s.enabled() {
		return models.JobStatusSkipped, nil
	}

	var job models.ScanJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	if job.Force {
		if err := s.clearAllPersons(ctx); err != nil {
			return "", err
		}
		if err := s.store.DeleteAllFaces(ctx); err != nil {
			return "", err
		}
	}

	pageSize := s.cfg.Job.PageSize
	for offset := 0; ; offset += pageSize {
		var (
			assets []models.Asset
			err    error
		)
		if job.Force {
			assets, err = s.store.GetAssets(ctx, pageSize, offset, storage.AssetScope{VisibleOnly: true, WithArchived: true})
		} else {
			assets, err = s.store.GetAssetsWithout(ctx, pageSize, offset, storage.WithoutFaces)
		}
		if err != nil {
			return "", err
		}

		jobs := make([]queue.Job, 0, len(assets))
		for _, a := range assets {
			jobs = append(jobs, queue.Job{Name: queue.JobFaceDetection, Data: models.AssetJob{AssetID: a.ID}})
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

// HandleDetectFaces sends one asset's preview to the inference endpoint
// and stores the detections. Embeddings land in the store before any
// recognition job for them is enqueued.
func (s *Service) HandleDetectFaces(ctx context.Context, payload []byte) (models.JobStatus, error) {
	if !s.enabled() {
		return models.JobStatusSkipped, nil
	}

	var job models.AssetJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	asset, err := s.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return "", err
	}
	if asset == nil || asset.PreviewPath == "" {
		return models.JobStatusFailed, nil
	}
	if !asset.IsVisible {
		return models.JobStatusSkipped, nil
	}

	// An asset that already carries faces went through detection before;
	// running again (redelivery, producer racing the live queue) would
	// duplicate every row.
	existing, err := s.store.CountAssetFaces(ctx, asset.ID)
	if err != nil {
		return "", err
	}
	if existing > 0 {
		return models.JobStatusFailed, nil
	}

	resp, err := s.detector.DetectFaces(ctx, s.cfg.MachineLearning.URL, asset.PreviewPath,
		s.cfg.MachineLearning.FacialRecognition)
	if err != nil {
		return "", err
	}

	faces := make([]models.Face, 0, len(resp.Faces))
	for _, d := range resp.Faces {
		faces = append(faces, models.Face{
			ID:            uuid.New(),
			AssetID:       asset.ID,
			ImageWidth:    resp.ImageWidth,
			ImageHeight:   resp.ImageHeight,
			BoundingBoxX1: d.BoundingBox.X1,
			BoundingBoxY1: d.BoundingBox.Y1,
			BoundingBoxX2: d.BoundingBox.X2,
			BoundingBoxY2: d.BoundingBox.Y2,
			Embedding:     d.Embedding,
		})
	}

	if len(faces) > 0 {
		if err := s.store.CreateFaces(ctx, faces); err != nil {
			return "", err
		}
		observability.FacesDetected.Add(float64(len(faces)))

		jobs := make([]queue.Job, 0, len(faces)+1)
		jobs = append(jobs, queue.Job{Name: queue.JobQueueFacialRecognition, Data: models.SweepJob{Force: false}})
		for _, f := range faces {
			jobs = append(jobs, queue.Job{Name: queue.JobFacialRecognition, Data: models.FaceJob{FaceID: f.ID}})
		}
		if err := s.jobs.EnqueueAll(ctx, jobs); err != nil {
			return "", err
		}
	}

	now := time.Now()
	if err := s.store.UpsertAssetJobStatus(ctx, asset.ID, storage.JobStatusUpdate{FacesRecognizedAt: &now}); err != nil {
		return "", err
	}
	return models.JobStatusSuccess, nil
}

// HandleQueueRecognizeFaces re-runs clustering over unassigned faces. It
// waits for thumbnails and detection to drain first so every face it can
// see has its embedding and preview in place.
func (s *Service) HandleQueueRecognizeFaces(ctx context.Context, payload []byte) (models.JobStatus, error) {
	if !s.enabled() {
		return models.JobStatusSkipped, nil
	}

	var job models.SweepJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	if err := s.jobs.WaitForDrain(ctx, queue.QueueThumbnailGeneration, queue.QueueFaceDetection); err != nil {
		return "", err
	}

	if job.Nightly {
		stale, err := s.nightlyIsStale(ctx)
		if err != nil {
			return "", err
		}
		if !stale {
			slog.Info("no new faces since last recognition run, skipping nightly sweep")
			return models.JobStatusSkipped, nil
		}
	}

	if !job.Force {
		counts, err := s.jobs.GetCounts(ctx, queue.QueueFacialRecognition)
		if err != nil {
			return "", err
		}
		if counts.Waiting > 0 {
			// Recognition work is already queued; this sweep would only
			// duplicate it.
			return models.JobStatusSkipped, nil
		}
	}

	if job.Force {
		if err := s.clearAllPersons(ctx); err != nil {
			return "", err
		}
	}

	pageSize := s.cfg.Job.PageSize
	for offset := 0; ; offset += pageSize {
		faces, err := s.store.GetFaces(ctx, pageSize, offset, true)
		if err != nil {
			return "", err
		}

		jobs := make([]queue.Job, 0, len(faces))
		for _, f := range faces {
			jobs = append(jobs, queue.Job{Name: queue.JobFacialRecognition, Data: models.FaceJob{FaceID: f.ID}})
		}
		if err := s.jobs.EnqueueAll(ctx, jobs); err != nil {
			return "", err
		}

		if len(faces) < pageSize {
			break
		}
	}

	if err := s.store.SetSystemMetadata(ctx, lastRecognitionRunKey, recognitionRunState{LastRun: time.Now()}); err != nil {
		return "", err
	}
	return models.JobStatusSuccess, nil
}

// nightlyIsStale reports whether any face was created after the last
// recorded recognition run. A missing record means a sweep never ran.
func (s *Service) nightlyIsStale(ctx context.Context) (bool, error) {
	raw, err := s.store.GetSystemMetadata(ctx, lastRecognitionRunKey)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return true, nil
	}

	var state recognitionRunState
	if err := json.Unmarshal(raw, &state); err != nil {
		return true, nil
	}

	latest, err := s.store.GetLatestFaceDate(ctx)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.After(state.LastRun), nil
}

// HandleRecognizeFaces resolves one face to a person. A face with too few
// neighbours gets one deferred retry; a deferred face that still lacks a
// core cluster joins an existing person if any neighbour has one, and
// otherwise stays unassigned.
func (s *Service) HandleRecognizeFaces(ctx context.Context, payload []byte) (models.JobStatus, error) {
	if !s.enabled() {
		return models.JobStatusSkipped, nil
	}

	var job models.FaceJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	face, err := s.store.GetFace(ctx, job.FaceID)
	if err != nil {
		return "", err
	}
	if face == nil {
		return models.JobStatusFailed, nil
	}
	if face.PersonID != nil {
		return models.JobStatusSkipped, nil
	}

	asset, err := s.store.GetAsset(ctx, face.AssetID)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return models.JobStatusFailed, nil
	}

	frCfg := s.cfg.MachineLearning.FacialRecognition
	matches, err := s.store.SearchFaces(ctx, storage.FaceSearch{
		OwnerID:     asset.OwnerID,
		Embedding:   face.Embedding,
		MaxDistance: frCfg.MaxDistance,
		NumResults:  frCfg.MinFaces,
	})
	if err != nil {
		return "", err
	}

	// The query face matches itself at distance zero; a lone self-match
	// means nothing similar exists yet.
	if frCfg.MinFaces > 1 && len(matches) <= 1 {
		return models.JobStatusSkipped, nil
	}

	isCore := len(matches) >= frCfg.MinFaces && !asset.IsArchived
	if !isCore && !job.Deferred {
		if err := s.jobs.Enqueue(ctx, queue.Job{
			Name: queue.JobFacialRecognition,
			Data: models.FaceJob{FaceID: face.ID, Deferred: true},
		}); err != nil {
			return "", err
		}
		return models.JobStatusSkipped, nil
	}

	var personID *uuid.UUID
	for _, m := range matches {
		if m.PersonID != nil {
			personID = m.PersonID
			break
		}
	}

	if personID == nil {
		withPerson, err := s.store.SearchFaces(ctx, storage.FaceSearch{
			OwnerID:     asset.OwnerID,
			Embedding:   face.Embedding,
			MaxDistance: frCfg.MaxDistance,
			NumResults:  1,
			HasPerson:   true,
		})
		if err != nil {
			return "", err
		}
		if len(withPerson) > 0 {
			personID = withPerson[0].PersonID
		}
	}

	if personID == nil {
		if !isCore {
			return models.JobStatusSkipped, nil
		}
		person, err := s.store.CreatePerson(ctx, asset.OwnerID, &face.ID)
		if err != nil {
			return "", err
		}
		observability.PersonsCreated.Inc()
		if err := s.jobs.Enqueue(ctx, queue.Job{
			Name: queue.JobGeneratePersonThumbnail,
			Data: models.PersonJob{PersonID: person.ID},
		}); err != nil {
			return "", err
		}
		personID = &person.ID
	}

	if err := s.store.ReassignFaces(ctx, *personID, face.ID); err != nil {
		return "", err
	}
	observability.FacesAssigned.Inc()
	return models.JobStatusSuccess, nil
}

// clearAllPersons removes every person and their rendered thumbnails.
func (s *Service) clearAllPersons(ctx context.Context) error {
	pageSize := s.cfg.Job.PageSize
	var paths []string
	for offset := 0; ; offset += pageSize {
		persons, err := s.store.GetPersons(ctx, pageSize, offset, false)
		if err != nil {
			return err
		}
		for _, p := range persons {
			if p.ThumbnailPath != "" {
				paths = append(paths, p.ThumbnailPath)
			}
		}
		if len(persons) < pageSize {
			break
		}
	}

	if len(paths) > 0 {
		if err := s.jobs.Enqueue(ctx, queue.Job{Name: queue.JobDeleteFiles, Data: models.FileJob{Paths: paths}}); err != nil {
			return err
		}
	}
	return s.store.DeleteAllPersons(ctx)
}
