package face

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/ml"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

type fakeStore struct {
	assets  map[uuid.UUID]*models.Asset
	faces   map[uuid.UUID]*models.Face
	persons map[uuid.UUID]*models.Person

	searchResults       []storage.FaceMatch
	personSearchResults []storage.FaceMatch
	latestFaceDate      *time.Time
	metadata            map[string]json.RawMessage

	createdFaces   []models.Face
	createdPersons []*models.Person
	reassignments  map[uuid.UUID][]uuid.UUID
	deletedPersons []uuid.UUID
	personUpdates  map[uuid.UUID][]storage.PersonUpdate
	jobStatuses    map[uuid.UUID][]storage.JobStatusUpdate
	personsCleared bool
	facesCleared   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assets:        make(map[uuid.UUID]*models.Asset),
		faces:         make(map[uuid.UUID]*models.Face),
		persons:       make(map[uuid.UUID]*models.Person),
		metadata:      make(map[string]json.RawMessage),
		reassignments: make(map[uuid.UUID][]uuid.UUID),
		personUpdates: make(map[uuid.UUID][]storage.PersonUpdate),
		jobStatuses:   make(map[uuid.UUID][]storage.JobStatusUpdate),
	}
}

func (f *fakeStore) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	return f.assets[id], nil
}

func (f *fakeStore) GetAssets(ctx context.Context, limit, offset int, scope storage.AssetScope) ([]models.Asset, error) {
	if offset > 0 {
		return nil, nil
	}
	var out []models.Asset
	for _, a := range f.assets {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) GetAssetsWithout(ctx context.Context, limit, offset int, without storage.WithoutProperty) ([]models.Asset, error) {
	return nil, nil
}

func (f *fakeStore) UpsertAssetJobStatus(ctx context.Context, assetID uuid.UUID, update storage.JobStatusUpdate) error {
	f.jobStatuses[assetID] = append(f.jobStatuses[assetID], update)
	return nil
}

func (f *fakeStore) CreateFaces(ctx context.Context, faces []models.Face) error {
	f.createdFaces = append(f.createdFaces, faces...)
	for i := range faces {
		face := faces[i]
		f.faces[face.ID] = &face
	}
	return nil
}

func (f *fakeStore) CountAssetFaces(ctx context.Context, assetID uuid.UUID) (int, error) {
	count := 0
	for _, face := range f.faces {
		if face.AssetID == assetID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) GetFace(ctx context.Context, id uuid.UUID) (*models.Face, error) {
	return f.faces[id], nil
}

func (f *fakeStore) GetFaces(ctx context.Context, limit, offset int, personless bool) ([]models.Face, error) {
	if offset > 0 {
		return nil, nil
	}
	var out []models.Face
	for _, face := range f.faces {
		if personless && face.PersonID != nil {
			continue
		}
		out = append(out, *face)
	}
	return out, nil
}

func (f *fakeStore) GetRandomFace(ctx context.Context, personID uuid.UUID) (*models.Face, error) {
	for _, face := range f.faces {
		if face.PersonID != nil && *face.PersonID == personID {
			return face, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetLatestFaceDate(ctx context.Context) (*time.Time, error) {
	return f.latestFaceDate, nil
}

func (f *fakeStore) ReassignFaces(ctx context.Context, newPersonID uuid.UUID, faceIDs ...uuid.UUID) error {
	f.reassignments[newPersonID] = append(f.reassignments[newPersonID], faceIDs...)
	for _, id := range faceIDs {
		if face, ok := f.faces[id]; ok {
			face.PersonID = &newPersonID
		}
	}
	return nil
}

func (f *fakeStore) ReassignPersonFaces(ctx context.Context, oldPersonID, newPersonID uuid.UUID) (int64, error) {
	var moved int64
	for _, face := range f.faces {
		if face.PersonID != nil && *face.PersonID == oldPersonID {
			face.PersonID = &newPersonID
			moved++
		}
	}
	return moved, nil
}

func (f *fakeStore) DeleteAllFaces(ctx context.Context) error {
	f.facesCleared = true
	f.faces = make(map[uuid.UUID]*models.Face)
	return nil
}

func (f *fakeStore) SearchFaces(ctx context.Context, search storage.FaceSearch) ([]storage.FaceMatch, error) {
	if search.HasPerson {
		return f.personSearchResults, nil
	}
	if len(f.searchResults) > search.NumResults {
		return f.searchResults[:search.NumResults], nil
	}
	return f.searchResults, nil
}

func (f *fakeStore) CreatePerson(ctx context.Context, ownerID uuid.UUID, faceID *uuid.UUID) (*models.Person, error) {
	p := &models.Person{ID: uuid.New(), OwnerID: ownerID, FaceID: faceID, CreatedAt: time.Now()}
	f.persons[p.ID] = p
	f.createdPersons = append(f.createdPersons, p)
	return p, nil
}

func (f *fakeStore) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	return f.persons[id], nil
}

func (f *fakeStore) UpdatePerson(ctx context.Context, id uuid.UUID, update storage.PersonUpdate) error {
	f.personUpdates[id] = append(f.personUpdates[id], update)
	return nil
}

func (f *fakeStore) GetPersons(ctx context.Context, limit, offset int, missingThumbnail bool) ([]models.Person, error) {
	if offset > 0 {
		return nil, nil
	}
	var out []models.Person
	for _, p := range f.persons {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) GetPersonsWithoutFaces(ctx context.Context) ([]models.Person, error) {
	var out []models.Person
	for _, p := range f.persons {
		found := false
		for _, face := range f.faces {
			if face.PersonID != nil && *face.PersonID == p.ID {
				found = true
				break
			}
		}
		if !found {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) DeletePerson(ctx context.Context, id uuid.UUID) error {
	delete(f.persons, id)
	f.deletedPersons = append(f.deletedPersons, id)
	for _, face := range f.faces {
		if face.PersonID != nil && *face.PersonID == id {
			face.PersonID = nil
		}
	}
	return nil
}

func (f *fakeStore) DeleteAllPersons(ctx context.Context) error {
	f.personsCleared = true
	f.persons = make(map[uuid.UUID]*models.Person)
	for _, face := range f.faces {
		face.PersonID = nil
	}
	return nil
}

func (f *fakeStore) GetSystemMetadata(ctx context.Context, key string) (json.RawMessage, error) {
	return f.metadata[key], nil
}

func (f *fakeStore) SetSystemMetadata(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.metadata[key] = data
	return nil
}

type fakeJobs struct {
	enqueued []queue.Job
	counts   map[queue.QueueName]queue.Counts
	drained  []queue.QueueName
}

func (f *fakeJobs) Enqueue(ctx context.Context, job queue.Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeJobs) EnqueueAll(ctx context.Context, jobs []queue.Job) error {
	f.enqueued = append(f.enqueued, jobs...)
	return nil
}

func (f *fakeJobs) GetCounts(ctx context.Context, q queue.QueueName) (queue.Counts, error) {
	return f.counts[q], nil
}

func (f *fakeJobs) WaitForDrain(ctx context.Context, queues ...queue.QueueName) error {
	f.drained = append(f.drained, queues...)
	return nil
}

func (f *fakeJobs) byName(name queue.JobName) []queue.Job {
	var out []queue.Job
	for _, j := range f.enqueued {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}

type fakeDetector struct {
	resp  *ml.DetectFacesResponse
	calls int
}

func (f *fakeDetector) DetectFaces(ctx context.Context, url, imagePath string, cfg config.FacialRecognitionConfig) (*ml.DetectFacesResponse, error) {
	f.calls++
	return f.resp, nil
}

type fakeBlob struct {
	deletes []string
}

func (f *fakeBlob) PutFile(ctx context.Context, key, path, contentType string) error {
	return nil
}

func (f *fakeBlob) DeleteObject(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

func newTestService(t *testing.T, store *fakeStore, jobs *fakeJobs, detector *fakeDetector) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.MediaDir = t.TempDir()
	cfg.MachineLearning.Enabled = true
	cfg.MachineLearning.FacialRecognition.Enabled = true
	return NewService(store, jobs, detector, &fakeBlob{}, storage.NewLocalStore(cfg.Storage.MediaDir), cfg)
}

func payload(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func addFace(store *fakeStore, assetID uuid.UUID) *models.Face {
	face := &models.Face{
		ID:        uuid.New(),
		AssetID:   assetID,
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: time.Now(),
	}
	store.faces[face.ID] = face
	return face
}

func addAsset(store *fakeStore, archived bool) *models.Asset {
	asset := &models.Asset{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Type:        models.AssetTypeImage,
		PreviewPath: "/data/preview.jpg",
		IsVisible:   true,
		IsArchived:  archived,
	}
	store.assets[asset.ID] = asset
	return asset
}

func TestHandleDetectFacesStoresAndChains(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	detector := &fakeDetector{resp: &ml.DetectFacesResponse{
		ImageWidth:  1440,
		ImageHeight: 960,
		Faces: []ml.DetectedFace{
			{BoundingBox: ml.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50}, Embedding: []float32{1, 2}, Score: 0.9},
			{BoundingBox: ml.BoundingBox{X1: 80, Y1: 20, X2: 120, Y2: 60}, Embedding: []float32{3, 4}, Score: 0.8},
		},
	}}
	svc := newTestService(t, store, jobs, detector)
	asset := addAsset(store, false)

	status, err := svc.HandleDetectFaces(context.Background(), payload(t, models.AssetJob{AssetID: asset.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, status)

	require.Len(t, store.createdFaces, 2)
	assert.Equal(t, 1440, store.createdFaces[0].ImageWidth)

	assert.Len(t, jobs.byName(queue.JobFacialRecognition), 2, "one recognition job per face")
	assert.Len(t, jobs.byName(queue.JobQueueFacialRecognition), 1)
	require.Len(t, store.jobStatuses[asset.ID], 1)
	assert.NotNil(t, store.jobStatuses[asset.ID][0].FacesRecognizedAt)
}

func TestHandleDetectFacesRefusesRedetection(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	detector := &fakeDetector{resp: &ml.DetectFacesResponse{
		ImageWidth:  1440,
		ImageHeight: 960,
		Faces: []ml.DetectedFace{
			{BoundingBox: ml.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50}, Embedding: []float32{1, 2}, Score: 0.9},
		},
	}}
	svc := newTestService(t, store, jobs, detector)
	asset := addAsset(store, false)

	status, err := svc.HandleDetectFaces(context.Background(), payload(t, models.AssetJob{AssetID: asset.ID}))
	require.NoError(t, err)
	require.Equal(t, models.JobStatusSuccess, status)
	require.Len(t, store.createdFaces, 1)

	// A redelivered or duplicated job for the same asset must not run the
	// detector again or insert a second copy of the faces.
	status, err = svc.HandleDetectFaces(context.Background(), payload(t, models.AssetJob{AssetID: asset.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status)
	assert.Equal(t, 1, detector.calls)
	assert.Len(t, store.createdFaces, 1)
}

func TestHandleDetectFacesDisabled(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})
	svc.cfg.MachineLearning.Enabled = false

	status, err := svc.HandleDetectFaces(context.Background(), payload(t, models.AssetJob{AssetID: uuid.New()}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)
	assert.Empty(t, jobs.enqueued)
}

func TestHandleRecognizeFacesSkipsAssignedFace(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	face := addFace(store, asset.ID)
	personID := uuid.New()
	face.PersonID = &personID

	status, err := svc.HandleRecognizeFaces(context.Background(), payload(t, models.FaceJob{FaceID: face.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)
	assert.Empty(t, jobs.enqueued)
}

func TestHandleRecognizeFacesLoneSelfMatch(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	face := addFace(store, asset.ID)
	store.searchResults = []storage.FaceMatch{{FaceID: face.ID, Distance: 0}}

	status, err := svc.HandleRecognizeFaces(context.Background(), payload(t, models.FaceJob{FaceID: face.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)
	assert.Empty(t, jobs.enqueued, "a lone self-match is not worth deferring")
}

func TestHandleRecognizeFacesDefersThinCluster(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	face := addFace(store, asset.ID)
	store.searchResults = []storage.FaceMatch{
		{FaceID: face.ID, Distance: 0},
		{FaceID: uuid.New(), Distance: 0.3},
	}

	status, err := svc.HandleRecognizeFaces(context.Background(), payload(t, models.FaceJob{FaceID: face.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)

	deferred := jobs.byName(queue.JobFacialRecognition)
	require.Len(t, deferred, 1)
	var dj models.FaceJob
	require.NoError(t, json.Unmarshal(payload(t, deferred[0].Data), &dj))
	assert.True(t, dj.Deferred)
	assert.Equal(t, face.ID, dj.FaceID)
	assert.Nil(t, store.faces[face.ID].PersonID, "no assignment on the first thin pass")
}

func TestHandleRecognizeFacesDeferredJoinsNeighborPerson(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	face := addFace(store, asset.ID)
	neighborPerson := uuid.New()
	store.searchResults = []storage.FaceMatch{
		{FaceID: face.ID, Distance: 0},
		{FaceID: uuid.New(), PersonID: &neighborPerson, Distance: 0.2},
	}

	status, err := svc.HandleRecognizeFaces(context.Background(), payload(t, models.FaceJob{FaceID: face.ID, Deferred: true}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, status)
	assert.Equal(t, []uuid.UUID{face.ID}, store.reassignments[neighborPerson])
	assert.Empty(t, store.createdPersons)
}

func TestHandleRecognizeFacesCreatesPersonForCoreCluster(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	face := addFace(store, asset.ID)
	store.searchResults = []storage.FaceMatch{
		{FaceID: face.ID, Distance: 0},
		{FaceID: uuid.New(), Distance: 0.2},
		{FaceID: uuid.New(), Distance: 0.3},
	}

	status, err := svc.HandleRecognizeFaces(context.Background(), payload(t, models.FaceJob{FaceID: face.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, status)

	require.Len(t, store.createdPersons, 1)
	person := store.createdPersons[0]
	assert.Equal(t, asset.OwnerID, person.OwnerID)
	require.NotNil(t, person.FaceID)
	assert.Equal(t, face.ID, *person.FaceID, "new person gets the query face as feature face")
	assert.Equal(t, []uuid.UUID{face.ID}, store.reassignments[person.ID])
	assert.Len(t, jobs.byName(queue.JobGeneratePersonThumbnail), 1)
}

func TestHandleRecognizeFacesArchivedAssetNeverCore(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, true)
	face := addFace(store, asset.ID)
	store.searchResults = []storage.FaceMatch{
		{FaceID: face.ID, Distance: 0},
		{FaceID: uuid.New(), Distance: 0.2},
		{FaceID: uuid.New(), Distance: 0.3},
	}

	status, err := svc.HandleRecognizeFaces(context.Background(), payload(t, models.FaceJob{FaceID: face.ID, Deferred: true}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)
	assert.Empty(t, store.createdPersons, "archived assets never seed a person")
	assert.Nil(t, store.faces[face.ID].PersonID)
}

func TestHandleQueueRecognizeFacesNightlySkipsWhenFresh(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	lastFace := time.Now().Add(-48 * time.Hour)
	store.latestFaceDate = &lastFace
	require.NoError(t, store.SetSystemMetadata(context.Background(), lastRecognitionRunKey,
		recognitionRunState{LastRun: time.Now().Add(-24 * time.Hour)}))

	status, err := svc.HandleQueueRecognizeFaces(context.Background(), payload(t, models.SweepJob{Nightly: true}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)
	assert.Contains(t, jobs.drained, queue.QueueThumbnailGeneration)
	assert.Contains(t, jobs.drained, queue.QueueFaceDetection)
	assert.Empty(t, jobs.enqueued)
}

func TestHandleQueueRecognizeFacesNightlyRunsWithNewFaces(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	addFace(store, asset.ID)
	lastFace := time.Now()
	store.latestFaceDate = &lastFace
	require.NoError(t, store.SetSystemMetadata(context.Background(), lastRecognitionRunKey,
		recognitionRunState{LastRun: time.Now().Add(-24 * time.Hour)}))

	status, err := svc.HandleQueueRecognizeFaces(context.Background(), payload(t, models.SweepJob{Nightly: true}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, status)
	assert.Len(t, jobs.byName(queue.JobFacialRecognition), 1)
}

func TestHandleQueueRecognizeFacesForceClearsPersons(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	face := addFace(store, asset.ID)
	person, err := store.CreatePerson(context.Background(), asset.OwnerID, &face.ID)
	require.NoError(t, err)
	face.PersonID = &person.ID

	status, err := svc.HandleQueueRecognizeFaces(context.Background(), payload(t, models.SweepJob{Force: true}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, status)
	assert.True(t, store.personsCleared)
	assert.Len(t, jobs.byName(queue.JobFacialRecognition), 1, "released face is re-clustered")
}

func TestHandleQueueRecognizeFacesSkipsWhenWorkPending(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{counts: map[queue.QueueName]queue.Counts{
		queue.QueueFacialRecognition: {Waiting: 5},
	}}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	status, err := svc.HandleQueueRecognizeFaces(context.Background(), payload(t, models.SweepJob{}))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, status)
}

func TestMergePersonsIrreflexive(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	person, err := store.CreatePerson(context.Background(), asset.OwnerID, nil)
	require.NoError(t, err)

	results, err := svc.MergePersons(context.Background(), person.ID, []uuid.UUID{person.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success, "merging a person into itself is rejected")
	assert.Empty(t, store.deletedPersons)
	assert.Empty(t, jobs.enqueued)
}

func TestMergePersonsBackfillsAndMovesFaces(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	primary, err := store.CreatePerson(context.Background(), asset.OwnerID, nil)
	require.NoError(t, err)
	donor, err := store.CreatePerson(context.Background(), asset.OwnerID, nil)
	require.NoError(t, err)
	birthDate := time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC)
	donor.Name = "Alex"
	donor.BirthDate = &birthDate
	donor.ThumbnailPath = "/data/thumbs/donor.jpg"

	face := addFace(store, asset.ID)
	face.PersonID = &donor.ID

	results, err := svc.MergePersons(context.Background(), primary.ID, []uuid.UUID{donor.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	require.NotNil(t, store.faces[face.ID].PersonID)
	assert.Equal(t, primary.ID, *store.faces[face.ID].PersonID)
	assert.Contains(t, store.deletedPersons, donor.ID)

	updates := store.personUpdates[primary.ID]
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Name)
	assert.Equal(t, "Alex", *updates[0].Name)
	require.NotNil(t, updates[0].BirthDate)
	assert.Equal(t, birthDate, *updates[0].BirthDate)

	deleteJobs := jobs.byName(queue.JobDeleteFiles)
	require.Len(t, deleteJobs, 1, "donor thumbnail is scheduled for removal")
}

func TestHandlePersonCleanup(t *testing.T) {
	store := newFakeStore()
	jobs := &fakeJobs{}
	svc := newTestService(t, store, jobs, &fakeDetector{})

	asset := addAsset(store, false)
	orphan, err := store.CreatePerson(context.Background(), asset.OwnerID, nil)
	require.NoError(t, err)
	orphan.ThumbnailPath = "/data/thumbs/orphan.jpg"

	kept, err := store.CreatePerson(context.Background(), asset.OwnerID, nil)
	require.NoError(t, err)
	face := addFace(store, asset.ID)
	face.PersonID = &kept.ID

	status, err := svc.HandlePersonCleanup(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, status)
	assert.Equal(t, []uuid.UUID{orphan.ID}, store.deletedPersons)
	assert.Len(t, jobs.byName(queue.JobDeleteFiles), 1)
}
