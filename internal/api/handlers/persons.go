package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoflow/internal/face"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
	"github.com/your-org/photoflow/pkg/dto"
)

type PersonHandler struct {
	db    *storage.PostgresStore
	faces *face.Service
	jobs  *queue.Manager
}

func NewPersonHandler(db *storage.PostgresStore, faces *face.Service, jobs *queue.Manager) *PersonHandler {
	return &PersonHandler{db: db, faces: faces, jobs: jobs}
}

func (h *PersonHandler) List(c *gin.Context) {
	limit, offset := pagination(c)

	persons, err := h.db.GetPersons(c.Request.Context(), limit, offset, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for _, p := range persons {
		resp = append(resp, personResponse(&p))
	}
	c.JSON(http.StatusOK, gin.H{"persons": resp, "total": len(resp)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	c.JSON(http.StatusOK, personResponse(person))
}

// Update changes name, birth date, visibility or the feature face.
// Changing the feature face re-renders the person thumbnail.
func (h *PersonHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	update := storage.PersonUpdate{
		Name:     req.Name,
		IsHidden: req.IsHidden,
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid birth_date"})
			return
		}
		update.BirthDate = &birthDate
	}
	if req.FeatureFaceID != nil {
		f, err := h.db.GetFace(c.Request.Context(), *req.FeatureFaceID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if f == nil || f.PersonID == nil || *f.PersonID != id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "face does not belong to person"})
			return
		}
		update.FaceID = req.FeatureFaceID
	}

	if err := h.db.UpdatePerson(c.Request.Context(), id, update); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.FeatureFaceID != nil {
		err := h.jobs.Enqueue(c.Request.Context(), queue.Job{
			Name: queue.JobGeneratePersonThumbnail,
			Data: models.PersonJob{PersonID: id},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	person, err = h.db.GetPerson(c.Request.Context(), id)
	if err != nil || person == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload person failed"})
		return
	}
	c.JSON(http.StatusOK, personResponse(person))
}

// Merge folds the listed persons into this one.
func (h *PersonHandler) Merge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var req dto.MergePersonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.faces.MergePersons(c.Request.Context(), id, req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.MergeResultResponse, 0, len(results))
	for _, r := range results {
		resp = append(resp, dto.MergeResultResponse{ID: r.ID, Success: r.Success})
	}
	c.JSON(http.StatusOK, gin.H{"results": resp})
}

func personResponse(p *models.Person) dto.PersonResponse {
	resp := dto.PersonResponse{
		ID:            p.ID,
		Name:          p.Name,
		IsHidden:      p.IsHidden,
		FaceID:        p.FaceID,
		ThumbnailPath: p.ThumbnailPath,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
	if p.BirthDate != nil {
		resp.BirthDate = p.BirthDate.Format("2006-01-02")
	}
	return resp
}
