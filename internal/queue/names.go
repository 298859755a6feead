package queue

// QueueName identifies an independent worker pool. Each queue has its own
// fixed concurrency; workers never borrow capacity across queues.
type QueueName string

const (
	QueueThumbnailGeneration QueueName = "thumbnail-generation"
	QueueVideoConversion     QueueName = "video-conversion"
	QueueFaceDetection       QueueName = "face-detection"
	QueueFacialRecognition   QueueName = "facial-recognition"
	QueueBackgroundTask      QueueName = "background-task"
)

// JobName identifies a handler. Producers ("queue-*") paginate over the
// store and fan out leaf jobs onto the same queue.
type JobName string

const (
	JobQueueGenerateThumbnails JobName = "queue-generate-thumbnails"
	JobGeneratePreview         JobName = "generate-preview"
	JobGenerateThumbnail       JobName = "generate-thumbnail"
	JobGeneratePersonThumbnail JobName = "generate-person-thumbnail"

	JobQueueVideoConversion JobName = "queue-video-conversion"
	JobVideoConversion      JobName = "video-conversion"

	JobQueueFaceDetection JobName = "queue-face-detection"
	JobFaceDetection      JobName = "face-detection"

	JobQueueFacialRecognition JobName = "queue-facial-recognition"
	JobFacialRecognition      JobName = "facial-recognition"

	JobPersonCleanup JobName = "person-cleanup"
	JobDeleteFiles   JobName = "delete-files"
)

// jobQueues routes each job to the queue whose workers run it.
var jobQueues = map[JobName]QueueName{
	JobQueueGenerateThumbnails: QueueThumbnailGeneration,
	JobGeneratePreview:         QueueThumbnailGeneration,
	JobGenerateThumbnail:       QueueThumbnailGeneration,
	JobGeneratePersonThumbnail: QueueThumbnailGeneration,

	JobQueueVideoConversion: QueueVideoConversion,
	JobVideoConversion:      QueueVideoConversion,

	JobQueueFaceDetection: QueueFaceDetection,
	JobFaceDetection:      QueueFaceDetection,

	JobQueueFacialRecognition: QueueFacialRecognition,
	JobFacialRecognition:      QueueFacialRecognition,

	JobPersonCleanup: QueueBackgroundTask,
	JobDeleteFiles:   QueueBackgroundTask,
}

// AllQueues lists every named queue, in worker start order.
var AllQueues = []QueueName{
	QueueThumbnailGeneration,
	QueueVideoConversion,
	QueueFaceDetection,
	QueueFacialRecognition,
	QueueBackgroundTask,
}

// defaultConcurrency applies when the config carries no entry for a queue.
var defaultConcurrency = map[QueueName]int{
	QueueThumbnailGeneration: 3,
	QueueVideoConversion:     1,
	QueueFaceDetection:       2,
	QueueFacialRecognition:   2,
	QueueBackgroundTask:      5,
}

// QueueOf returns the queue a job runs on.
func QueueOf(name JobName) QueueName {
	return jobQueues[name]
}
