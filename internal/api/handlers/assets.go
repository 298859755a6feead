package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
	"github.com/your-org/photoflow/pkg/dto"
)

type AssetHandler struct {
	db   *storage.PostgresStore
	jobs *queue.Manager
}

func NewAssetHandler(db *storage.PostgresStore, jobs *queue.Manager) *AssetHandler {
	return &AssetHandler{db: db, jobs: jobs}
}

func (h *AssetHandler) List(c *gin.Context) {
	var query dto.AssetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit <= 0 || query.Limit > 1000 {
		query.Limit = 100
	}

	scope := storage.AssetScope{WithArchived: true}
	if query.Type != "" {
		t := models.AssetType(query.Type)
		if t != models.AssetTypeImage && t != models.AssetTypeVideo {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset type"})
			return
		}
		scope.Type = &t
	}

	assets, err := h.db.GetAssets(c.Request.Context(), query.Limit, query.Offset, scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.AssetListResponse{Assets: make([]dto.AssetResponse, 0, len(assets))}
	for _, a := range assets {
		resp.Assets = append(resp.Assets, assetResponse(&a))
	}
	resp.Total = len(resp.Assets)
	c.JSON(http.StatusOK, resp)
}

func (h *AssetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, err := h.db.GetAsset(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, assetResponse(asset))
}

// Refresh re-runs the derivation pipeline for one asset: preview (which
// chains the thumbnail), face detection, and conversion for videos.
func (h *AssetHandler) Refresh(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, err := h.db.GetAsset(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	jobs := []queue.Job{
		{Name: queue.JobGeneratePreview, Data: models.AssetJob{AssetID: id}},
		{Name: queue.JobFaceDetection, Data: models.AssetJob{AssetID: id}},
	}
	if asset.Type == models.AssetTypeVideo {
		jobs = append(jobs, queue.Job{Name: queue.JobVideoConversion, Data: models.AssetJob{AssetID: id}})
	}

	if err := h.jobs.EnqueueAll(c.Request.Context(), jobs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "jobs": len(jobs)})
}

func assetResponse(a *models.Asset) dto.AssetResponse {
	return dto.AssetResponse{
		ID:               a.ID,
		OwnerID:          a.OwnerID,
		Type:             string(a.Type),
		OriginalPath:     a.OriginalPath,
		PreviewPath:      a.PreviewPath,
		ThumbnailPath:    a.ThumbnailPath,
		EncodedVideoPath: a.EncodedVideoPath,
		IsVisible:        a.IsVisible,
		IsArchived:       a.IsArchived,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

// pagination reads limit/offset query params with sane bounds.
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
