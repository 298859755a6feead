package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueOfRoutesEveryJob(t *testing.T) {
	jobs := []JobName{
		JobQueueGenerateThumbnails,
		JobGeneratePreview,
		JobGenerateThumbnail,
		JobGeneratePersonThumbnail,
		JobQueueVideoConversion,
		JobVideoConversion,
		JobQueueFaceDetection,
		JobFaceDetection,
		JobQueueFacialRecognition,
		JobFacialRecognition,
		JobPersonCleanup,
		JobDeleteFiles,
	}

	for _, job := range jobs {
		assert.NotEmpty(t, QueueOf(job), "job %s must route to a queue", job)
	}
}

func TestProducersShareQueueWithLeafJobs(t *testing.T) {
	assert.Equal(t, QueueOf(JobQueueGenerateThumbnails), QueueOf(JobGenerateThumbnail))
	assert.Equal(t, QueueOf(JobQueueVideoConversion), QueueOf(JobVideoConversion))
	assert.Equal(t, QueueOf(JobQueueFaceDetection), QueueOf(JobFaceDetection))
	assert.Equal(t, QueueOf(JobQueueFacialRecognition), QueueOf(JobFacialRecognition))
}

func TestEveryQueueHasDefaultConcurrency(t *testing.T) {
	for _, q := range AllQueues {
		assert.Greater(t, defaultConcurrency[q], 0, "queue %s needs a default worker count", q)
	}
}

func TestJobNameFromSubject(t *testing.T) {
	assert.Equal(t, JobFaceDetection, jobNameFromSubject("jobs.face-detection.face-detection"))
	assert.Equal(t, JobGeneratePersonThumbnail, jobNameFromSubject("jobs.thumbnail-generation.generate-person-thumbnail"))
	assert.Equal(t, JobName(""), jobNameFromSubject("garbage"))
}
