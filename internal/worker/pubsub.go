package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/remediation"
)

// Job types accepted on the subscription.
const (
	JobRunChecks      = "run_checks"
	JobRunCheck       = "run_check"
	JobAutoRemediate  = "auto_remediate"
	JobCollectMetrics = "collect_metrics"
)

// ErrUnknownJob is returned for messages whose job_type is not recognised.
var ErrUnknownJob = errors.New("unknown job type")

// Remediator drives remediation against a stored incident.
type Remediator interface {
	AutoRemediate(
		ctx context.Context,
		id int64,
		strategy remediation.Strategy,
		maxRetries int,
		dryRun bool,
	) (*incident.Outcome, error)
}

// JobMessage is the payload of a worker job.
type JobMessage struct {
	JobType    string  `json:"job_type"`
	CheckID    int64   `json:"check_id,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	IncidentID int64   `json:"incident_id,omitempty"`
	Strategy   string  `json:"strategy,omitempty"`
	MaxRetries int     `json:"max_retries,omitempty"`
	DryRun     bool    `json:"dry_run,omitempty"`
}

// Dispatcher routes decoded job messages to the services that execute them.
type Dispatcher struct {
	sweep      *SweepJob
	runner     CheckRunner
	remediator Remediator
	collector  Collector
	logger     zerolog.Logger
}

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	Sweep      *SweepJob
	Runner     CheckRunner
	Remediator Remediator
	Collector  Collector
	Logger     zerolog.Logger
}

// NewDispatcher creates a job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		sweep:      cfg.Sweep,
		runner:     cfg.Runner,
		remediator: cfg.Remediator,
		collector:  cfg.Collector,
		logger:     cfg.Logger,
	}
}

// Dispatch decodes data and executes the job it describes.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("decode job: %w", err)
	}

	switch msg.JobType {
	case JobRunChecks:
		return msg.JobType, d.handleRunChecks(ctx)
	case JobRunCheck:
		return msg.JobType, d.handleRunCheck(ctx, msg)
	case JobAutoRemediate:
		return msg.JobType, d.handleAutoRemediate(ctx, msg)
	case JobCollectMetrics:
		return msg.JobType, d.handleCollect()
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (d *Dispatcher) handleRunChecks(ctx context.Context) error {
	result, err := d.sweep.Run(ctx)
	if err != nil {
		return err
	}

	// Failed checks are a normal outcome; only unexecutable checks count.
	if result.Errored > result.Total/2 {
		return fmt.Errorf("too many check errors: %d/%d", result.Errored, result.Total)
	}
	return nil
}

func (d *Dispatcher) handleRunCheck(ctx context.Context, msg JobMessage) error {
	if msg.CheckID <= 0 {
		return errors.New("run_check requires check_id")
	}
	out, err := d.runner.RunCheck(ctx, msg.CheckID, msg.Threshold)
	if err != nil {
		return err
	}
	d.logger.Info().
		Int64("check_id", msg.CheckID).
		Bool("passed", out.Passed).
		Float64("result_value", out.ResultValue).
		Msg("check executed")
	return nil
}

func (d *Dispatcher) handleAutoRemediate(ctx context.Context, msg JobMessage) error {
	if msg.IncidentID <= 0 {
		return errors.New("auto_remediate requires incident_id")
	}
	strategy, err := remediation.ParseStrategy(msg.Strategy)
	if err != nil {
		return err
	}

	outcome, err := d.remediator.AutoRemediate(ctx, msg.IncidentID, strategy, msg.MaxRetries, msg.DryRun)
	if err != nil {
		return err
	}
	d.logger.Info().
		Int64("incident_id", msg.IncidentID).
		Str("strategy", string(strategy)).
		Int("attempts", len(outcome.Results)).
		Bool("success", outcome.FinalSuccess()).
		Str("status", string(outcome.Incident.Status)).
		Msg("auto-remediation job finished")
	return nil
}

func (d *Dispatcher) handleCollect() error {
	if d.collector == nil {
		return errors.New("no infrastructure collector configured")
	}
	samples, err := d.collector.Collect("")
	if err != nil {
		return err
	}
	d.logger.Debug().Int("samples", len(samples)).Msg("infrastructure metrics collected")
	return nil
}

// Permanent reports whether redelivering a message that failed with err
// cannot succeed.
func Permanent(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, ErrUnknownJob) ||
		errors.Is(err, incident.ErrIncidentNotFound) ||
		errors.Is(err, incident.ErrInvalidTransition) ||
		errors.Is(err, remediation.ErrUnknownStrategy) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr)
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Remediation jobs can hold a message for several retry delays.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	jobType, err := h.dispatcher.Dispatch(ctx, msg.Data)
	if err != nil {
		if Permanent(err) {
			// Ack so the message is not redelivered forever.
			logger.Warn().Err(err).Str("job_type", jobType).Msg("dropping job")
			msg.Ack()
			return
		}
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
