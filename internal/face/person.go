package face

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/your-org/photoflow/internal/media"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

// HandleGeneratePersonThumbnail crops the person's feature face out of
// its asset preview and renders the square person thumbnail.
func (s *Service) HandleGeneratePersonThumbnail(ctx context.Context, payload []byte) (models.JobStatus, error) {
	var job models.PersonJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return models.JobStatusFailed, nil
	}

	person, err := s.store.GetPerson(ctx, job.PersonID)
	if err != nil {
		return "", err
	}
	if person == nil {
		return models.JobStatusFailed, nil
	}

	face, err := s.featureFace(ctx, person)
	if err != nil {
		return "", err
	}
	if face == nil {
		return models.JobStatusFailed, nil
	}

	asset, err := s.store.GetAsset(ctx, face.AssetID)
	if err != nil {
		return "", err
	}
	if asset == nil || asset.PreviewPath == "" {
		return models.JobStatusFailed, nil
	}

	width, height, err := media.ImageDimensions(asset.PreviewPath)
	if err != nil {
		return "", err
	}
	crop := media.FaceCropRegion(width, height, *face)

	newPath := s.personThumbnailPath(person)
	if err := s.local.EnsureDir(newPath); err != nil {
		return "", err
	}
	if err := media.GenerateFaceThumbnail(asset.PreviewPath, newPath, crop); err != nil {
		return "", err
	}

	if err := s.blob.PutFile(ctx, s.blobKey(newPath), newPath, "image/jpeg"); err != nil {
		return "", err
	}
	if person.ThumbnailPath != "" && person.ThumbnailPath != newPath {
		if err := s.removeArtifact(ctx, person.ThumbnailPath); err != nil {
			return "", err
		}
	}
	if err := s.store.UpdatePerson(ctx, person.ID, storage.PersonUpdate{ThumbnailPath: &newPath}); err != nil {
		return "", err
	}
	return models.JobStatusSuccess, nil
}

// featureFace resolves the person's feature face, electing a random one
// when the previous feature face was deleted or reassigned.
func (s *Service) featureFace(ctx context.Context, person *models.Person) (*models.Face, error) {
	if person.FaceID != nil {
		face, err := s.store.GetFace(ctx, *person.FaceID)
		if err != nil {
			return nil, err
		}
		if face != nil && face.PersonID != nil && *face.PersonID == person.ID {
			return face, nil
		}
	}

	face, err := s.store.GetRandomFace(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	if face == nil {
		return nil, nil
	}
	if err := s.store.UpdatePerson(ctx, person.ID, storage.PersonUpdate{FaceID: &face.ID}); err != nil {
		return nil, err
	}
	return face, nil
}

// MergeResult reports the outcome for one merged person.
type MergeResult struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
}

// MergePersons folds the listed persons into the primary one. Faces move
// over, empty name and birth date on the primary are backfilled from the
// first donor that has them, and the donors are deleted. Merging a person
// into itself is rejected.
func (s *Service) MergePersons(ctx context.Context, primaryID uuid.UUID, mergeIDs []uuid.UUID) ([]MergeResult, error) {
	primary, err := s.store.GetPerson(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("person %s not found", primaryID)
	}

	results := make([]MergeResult, 0, len(mergeIDs))
	for _, mergeID := range mergeIDs {
		if mergeID == primaryID {
			results = append(results, MergeResult{ID: mergeID, Success: false})
			continue
		}

		donor, err := s.store.GetPerson(ctx, mergeID)
		if err != nil {
			return nil, err
		}
		if donor == nil {
			results = append(results, MergeResult{ID: mergeID, Success: false})
			continue
		}

		update := storage.PersonUpdate{}
		if primary.Name == "" && donor.Name != "" {
			update.Name = &donor.Name
			primary.Name = donor.Name
		}
		if primary.BirthDate == nil && donor.BirthDate != nil {
			update.BirthDate = donor.BirthDate
			primary.BirthDate = donor.BirthDate
		}
		if update.Name != nil || update.BirthDate != nil {
			if err := s.store.UpdatePerson(ctx, primaryID, update); err != nil {
				return nil, err
			}
		}

		moved, err := s.store.ReassignPersonFaces(ctx, mergeID, primaryID)
		if err != nil {
			return nil, err
		}
		if err := s.store.DeletePerson(ctx, mergeID); err != nil {
			return nil, err
		}
		if donor.ThumbnailPath != "" {
			if err := s.jobs.Enqueue(ctx, queue.Job{
				Name: queue.JobDeleteFiles,
				Data: models.FileJob{Paths: []string{donor.ThumbnailPath}},
			}); err != nil {
				return nil, err
			}
		}

		slog.Info("merged person", "person_id", mergeID, "into", primaryID, "faces_moved", moved)
		results = append(results, MergeResult{ID: mergeID, Success: true})
	}
	return results, nil
}

// HandlePersonCleanup deletes persons that no face points at anymore,
// along with their rendered thumbnails.
func (s *Service) HandlePersonCleanup(ctx context.Context, payload []byte) (models.JobStatus, error) {
	persons, err := s.store.GetPersonsWithoutFaces(ctx)
	if err != nil {
		return "", err
	}

	var paths []string
	for _, p := range persons {
		if err := s.store.DeletePerson(ctx, p.ID); err != nil {
			return "", err
		}
		if p.ThumbnailPath != "" {
			paths = append(paths, p.ThumbnailPath)
		}
		slog.Info("removed orphaned person", "person_id", p.ID)
	}

	if len(paths) > 0 {
		if err := s.jobs.Enqueue(ctx, queue.Job{Name: queue.JobDeleteFiles, Data: models.FileJob{Paths: paths}}); err != nil {
			return "", err
		}
	}
	return models.JobStatusSuccess, nil
}

func (s *Service) personThumbnailPath(person *models.Person) string {
	return filepath.Join(s.local.Root(), "thumbs", person.OwnerID.String(), "people",
		person.ID.String()+".jpg")
}

func (s *Service) blobKey(path string) string {
	rel, err := filepath.Rel(s.local.Root(), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (s *Service) removeArtifact(ctx context.Context, path string) error {
	if err := s.local.Unlink(path); err != nil {
		return err
	}
	return s.blob.DeleteObject(ctx, s.blobKey(path))
}
