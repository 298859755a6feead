package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/observability"
)

const (
	jobsStreamName  = "JOBS"
	jobsSubjectBase = "jobs"
	eventsSubject   = "events.jobs"
)

// Job pairs a job name with its payload.
type Job struct {
	Name JobName
	Data any
}

// Counts reports in-flight and pending jobs for one queue.
type Counts struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
}

// Handler processes one job payload. Expected business outcomes come back
// as a JobStatus; a non-nil error means transient infrastructure failure
// and consumes the queue's retry budget.
type Handler func(ctx context.Context, payload []byte) (models.JobStatus, error)

// Manager owns the JetStream connection, one durable consumer per named
// queue, and the worker pools that drain them.
type Manager struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	handlers map[JobName]Handler
	cfg      config.JobConfig
}

func NewManager(natsURL string, cfg config.JobConfig) (*Manager, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Manager{
		nc:       nc,
		js:       js,
		handlers: make(map[JobName]Handler),
		cfg:      cfg,
	}, nil
}

// EnsureStream creates the JOBS stream if it doesn't exist. Retries to
// ride out NATS startup delay.
func (m *Manager) EnsureStream(ctx context.Context) error {
	streamCfg := jetstream.StreamConfig{
		Name:        jobsStreamName,
		Subjects:    []string{jobsSubjectBase + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		MaxMsgs:     1_000_000,
		Description: "Media pipeline jobs",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := m.js.CreateOrUpdateStream(opCtx, streamCfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", jobsStreamName)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", jobsStreamName, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", jobsStreamName, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// Register binds a handler to a job name. Must be called before Start.
func (m *Manager) Register(name JobName, h Handler) {
	m.handlers[name] = h
}

// Enqueue publishes a single job onto its queue.
func (m *Manager) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job.Data)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.Name, err)
	}

	subject := fmt.Sprintf("%s.%s.%s", jobsSubjectBase, QueueOf(job.Name), job.Name)
	if _, err := m.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish job %s: %w", job.Name, err)
	}
	return nil
}

// EnqueueAll publishes a batch of jobs, stopping at the first error.
func (m *Manager) EnqueueAll(ctx context.Context, jobs []Job) error {
	for _, job := range jobs {
		if err := m.Enqueue(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// GetCounts returns active (delivered, unacked) and waiting (undelivered)
// jobs for one queue.
func (m *Manager) GetCounts(ctx context.Context, queue QueueName) (Counts, error) {
	cons, err := m.js.Consumer(ctx, jobsStreamName, consumerName(queue))
	if err != nil {
		return Counts{}, fmt.Errorf("get consumer %s: %w", queue, err)
	}
	info, err := cons.Info(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("consumer info %s: %w", queue, err)
	}
	return Counts{
		Active:  info.NumAckPending,
		Waiting: int(info.NumPending) + info.NumRedelivered,
	}, nil
}

// WaitForDrain blocks until every listed queue reports zero active and zero
// waiting jobs. Used to sequence cross-queue stages (e.g. recognition only
// after thumbnails and detection are done).
func (m *Manager) WaitForDrain(ctx context.Context, queues ...QueueName) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		drained := true
		for _, q := range queues {
			counts, err := m.GetCounts(ctx, q)
			if err != nil {
				return err
			}
			if counts.Active > 0 || counts.Waiting > 0 {
				drained = false
				break
			}
		}
		if drained {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Start creates one durable consumer per queue and launches its worker
// pool. Every registered job routes to exactly one queue; a message whose
// job has no handler is dropped with a log line rather than redelivered
// forever.
func (m *Manager) Start(ctx context.Context) error {
	stream, err := m.js.Stream(ctx, jobsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", jobsStreamName, err)
	}

	for _, queue := range AllQueues {
		concurrency := m.cfg.Concurrency[string(queue)]
		if concurrency <= 0 {
			concurrency = defaultConcurrency[queue]
		}

		cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Name:          consumerName(queue),
			Durable:       consumerName(queue),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       5 * time.Minute,
			MaxDeliver:    m.cfg.Attempts,
			FilterSubject: fmt.Sprintf("%s.%s.>", jobsSubjectBase, queue),
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", queue, err)
		}

		m.runQueue(ctx, queue, cons, concurrency)
	}

	return nil
}

// runQueue starts a fetch loop feeding a bounded channel and `concurrency`
// workers draining it. A slow handler only ever blocks its own queue.
func (m *Manager) runQueue(ctx context.Context, queue QueueName, cons jetstream.Consumer, concurrency int) {
	msgCh := make(chan jetstream.Msg, concurrency)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(concurrency, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch jobs error", "queue", queue, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				m.dispatch(ctx, queue, workerID, msg)
			}
		}(i)
	}

	slog.Info("queue workers started", "queue", queue, "workers", concurrency)
}

func (m *Manager) dispatch(ctx context.Context, queue QueueName, workerID int, msg jetstream.Msg) {
	name := jobNameFromSubject(msg.Subject())
	handler, ok := m.handlers[name]
	if !ok {
		slog.Error("no handler for job", "queue", queue, "job", name)
		_ = msg.Term()
		return
	}

	start := time.Now()
	status, err := handler(ctx, msg.Data())
	duration := time.Since(start)

	if err != nil {
		// Transient failure: leave the message for redelivery until the
		// attempt budget runs out.
		slog.Error("job error", "queue", queue, "job", name, "worker", workerID, "error", err)
		observability.JobsProcessed.WithLabelValues(string(queue), string(name), "error").Inc()
		_ = msg.Nak()
		return
	}

	observability.JobsProcessed.WithLabelValues(string(queue), string(name), string(status)).Inc()
	observability.JobDuration.WithLabelValues(string(queue), string(name)).Observe(duration.Seconds())
	if status == models.JobStatusFailed {
		slog.Warn("job failed", "queue", queue, "job", name, "duration", duration.String())
	}
	_ = msg.Ack()

	m.publishEvent(models.JobEvent{
		Queue:      string(queue),
		Job:        string(name),
		Status:     status,
		DurationMS: duration.Milliseconds(),
		At:         time.Now(),
	})
}

// publishEvent broadcasts a finished job over core NATS. Event delivery is
// best effort; losing one only costs a live update.
func (m *Manager) publishEvent(event models.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := m.nc.Publish(eventsSubject, data); err != nil {
		slog.Debug("publish job event", "error", err)
	}
}

// SubscribeEvents delivers job lifecycle events to fn until the
// subscription is unsubscribed or the connection closes.
func (m *Manager) SubscribeEvents(fn func(data []byte)) (*nats.Subscription, error) {
	return m.nc.Subscribe(eventsSubject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
}

func (m *Manager) Ping() error {
	if !m.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (m *Manager) Close() {
	m.nc.Close()
}

func consumerName(queue QueueName) string {
	return "workers-" + string(queue)
}

// jobNameFromSubject parses "jobs.<queue>.<job>".
func jobNameFromSubject(subject string) JobName {
	parts := strings.SplitN(subject, ".", 3)
	if len(parts) != 3 {
		return ""
	}
	return JobName(parts[2])
}
