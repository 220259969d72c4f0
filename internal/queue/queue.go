// Package queue moves feedback requests through RabbitMQ so the pipeline can
// run in a worker process.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/feedback"
	logfields "github.com/spigell/interview-feedback/internal/logger"
)

const (
	defaultQueue    = "feedback_jobs"
	defaultPrefetch = 4
	publishTimeout  = 5 * time.Second
)

type Config struct {
	URL      string
	Queue    string
	Prefetch int
}

// Job is the message body: the submission itself plus an id for tracing.
type Job struct {
	ID      string           `json:"id"`
	Request feedback.Request `json:"request"`
}

// Handler runs the pipeline for one job.
type Handler func(ctx context.Context, req feedback.Request) feedback.Result

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
	logger   *zap.Logger

	mu sync.Mutex
}

// Dial connects to the broker and declares the durable job queue.
func Dial(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		return nil, errors.New("queue url is not configured")
	}
	if cfg.Queue == "" {
		cfg.Queue = defaultQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultPrefetch
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring queue %s: %w", cfg.Queue, err)
	}

	logger.Info("connected to rabbitmq", zap.String("queue", q.Name))

	return &Client{
		conn:     conn,
		channel:  ch,
		queue:    q.Name,
		prefetch: cfg.Prefetch,
		logger:   logger,
	}, nil
}

// Publish enqueues the request and returns the job id.
func (c *Client) Publish(ctx context.Context, req feedback.Request) (string, error) {
	job := Job{ID: uuid.NewString(), Request: req}

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing.
	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.channel.PublishWithContext(ctx,
		"",      // exchange
		c.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publishing job: %w", err)
	}

	c.logger.Debug("job published",
		zap.String("job_id", job.ID),
		zap.String(logfields.FieldInterview, req.InterviewID),
		zap.String(logfields.FieldUser, req.UserID),
	)
	return job.ID, nil
}

// Consume processes deliveries until ctx is done or the broker closes the channel.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("setting prefetch: %w", err)
	}

	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}

	c.logger.Info("consuming jobs", zap.String("queue", c.queue), zap.Int("prefetch", c.prefetch))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			process(ctx, d.Body, d, handler, c.logger)
		}
	}
}

func (c *Client) Close() error {
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// process runs one delivery. Successful and input-rejected jobs are acked since
// retrying cannot change their outcome. A job cut short by shutdown goes back
// to the queue; every other failure is dropped with a nack.
func process(ctx context.Context, body []byte, ack acknowledger, handler Handler, logger *zap.Logger) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		logger.Error("discarding malformed job", zap.Error(err))
		if err := ack.Nack(false, false); err != nil {
			logger.Warn("nack failed", zap.Error(err))
		}
		return
	}

	log := logger.With(zap.String("job_id", job.ID))
	log = log.With(logfields.RequestFields(job.Request.InterviewID, job.Request.UserID, job.Request.FeedbackID)...)

	res := handler(ctx, job.Request)

	switch {
	case res.IsOk():
		log.Info("job done", zap.String(logfields.FieldFeedback, res.FeedbackID))
	case res.Err.Kind == feedback.KindInput:
		log.Warn("job rejected", zap.Error(res.Err))
	case ctx.Err() != nil:
		log.Info("job interrupted by shutdown, requeueing", zap.Error(res.Err))
		if err := ack.Nack(false, true); err != nil {
			log.Warn("nack failed", zap.Error(err))
		}
		return
	default:
		log.Error("job failed", zap.String("kind", string(res.Err.Kind)), zap.Error(res.Err))
		if err := ack.Nack(false, false); err != nil {
			log.Warn("nack failed", zap.Error(err))
		}
		return
	}

	if err := ack.Ack(false); err != nil {
		log.Warn("ack failed", zap.Error(err))
	}
}
