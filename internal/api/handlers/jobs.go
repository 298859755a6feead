package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/pkg/dto"
)

type JobHandler struct {
	jobs *queue.Manager
}

func NewJobHandler(jobs *queue.Manager) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// commands maps the API stage name to the producer job it triggers.
var commands = map[string]queue.JobName{
	"thumbnail-generation": queue.JobQueueGenerateThumbnails,
	"video-conversion":     queue.JobQueueVideoConversion,
	"face-detection":       queue.JobQueueFaceDetection,
	"facial-recognition":   queue.JobQueueFacialRecognition,
	"person-cleanup":       queue.JobPersonCleanup,
}

// Trigger starts a backfill stage. Force clears the stage's derived state
// and re-processes everything.
func (h *JobHandler) Trigger(c *gin.Context) {
	name := c.Param("name")
	jobName, ok := commands[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job: " + name})
		return
	}

	var req dto.JobCommandRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var data any
	switch jobName {
	case queue.JobQueueFacialRecognition:
		data = models.SweepJob{Force: req.Force}
	case queue.JobPersonCleanup:
		data = struct{}{}
	default:
		data = models.ScanJob{Force: req.Force}
	}

	if err := h.jobs.Enqueue(c.Request.Context(), queue.Job{Name: jobName, Data: data}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job": string(jobName)})
}

// Counts reports active and waiting jobs for every queue.
func (h *JobHandler) Counts(c *gin.Context) {
	resp := dto.QueueListResponse{Queues: make([]dto.QueueCountsResponse, 0, len(queue.AllQueues))}
	for _, q := range queue.AllQueues {
		counts, err := h.jobs.GetCounts(c.Request.Context(), q)
		if err != nil {
			// A queue whose consumer has not started yet reports zero
			// rather than failing the whole listing.
			counts = queue.Counts{}
		}
		resp.Queues = append(resp.Queues, dto.QueueCountsResponse{
			Queue:   string(q),
			Active:  counts.Active,
			Waiting: counts.Waiting,
		})
	}
	c.JSON(http.StatusOK, resp)
}
