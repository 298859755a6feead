package dto

// JobCommandRequest triggers a backfill producer. Force re-processes
// everything, clearing derived state for the stage first.
type JobCommandRequest struct {
	Force bool `json:"force"`
}

type QueueCountsResponse struct {
	Queue   string `json:"queue"`
	Active  int    `json:"active"`
	Waiting int    `json:"waiting"`
}

type QueueListResponse struct {
	Queues []QueueCountsResponse `json:"queues"`
}

// WSEvent is a WebSocket message delivering one finished job.
type WSEvent struct {
	Type       string `json:"type"` // job_finished
	Queue      string `json:"queue"`
	Job        string `json:"job"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	At         string `json:"at"`
}
