// Package submitter composes the control-plane client, the status stream
// and the object-storage transfer into a single submit-and-wait operation.
package submitter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"qjob/internal/qjob/api"
	"qjob/internal/qjob/domain"
	"qjob/internal/qjob/storage"
	"qjob/internal/qjob/websocket"
	"qjob/pkg/logger"
)

// Options is the submission policy.
type Options struct {
	// UseObjectStorage stages every payload through object storage.
	UseObjectStorage bool
	// InlineLimit stages payloads larger than this many bytes even when
	// UseObjectStorage is off. Zero disables the threshold.
	InlineLimit int
	// PollInterval is the fixed interval of the REST polling fallback.
	PollInterval time.Duration
}

// Result is the outcome of one submit-and-wait. Result is nil unless the
// terminal status is COMPLETED.
type Result struct {
	JobID  string
	Status domain.JobStatus
	Result []byte
}

type Submitter struct {
	api    *api.Client
	stream *websocket.Client
	store  *storage.Transfer
	opts   Options
	log    *logger.Logger
}

func New(apiClient *api.Client, stream *websocket.Client, store *storage.Transfer, opts Options, log *logger.Logger) *Submitter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if log == nil {
		log = logger.New()
	}
	return &Submitter{
		api:    apiClient,
		stream: stream,
		store:  store,
		opts:   opts,
		log:    log.WithField("component", "submitter"),
	}
}

// SubmitAndWait submits the payload to the backend and blocks until the job
// reaches a terminal status or the timeout elapses. The timeout is one
// end-to-end budget covering the stream wait and any polling fallback.
//
// The status wait runs on the stream first; ConnectError and ProtocolError
// degrade to fixed-interval REST polling under the remaining budget, while
// a stream TimeoutError surfaces as-is. Cancellation via ctx reports
// ErrCancelled. The result is fetched the same way the payload was
// submitted: through object storage when staged, inline otherwise.
func (s *Submitter) SubmitAndWait(ctx context.Context, payload []byte, backend string, timeout time.Duration) (*Result, error) {
	deadline := time.Now().Add(timeout)

	staged := s.opts.UseObjectStorage ||
		(s.opts.InlineLimit > 0 && len(payload) > s.opts.InlineLimit)

	job, err := s.submit(ctx, payload, backend, staged)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("job_id", job.ID)
	log.Info("job submitted", "backend", backend, "staged", staged)

	status, err := s.awaitTerminal(ctx, job.ID, deadline, timeout)
	if err != nil {
		return nil, err
	}
	log.Info("job reached terminal status", "status", status)

	result := &Result{JobID: job.ID, Status: status}
	if status != domain.StatusCompleted {
		return result, nil
	}

	if staged {
		result.Result, err = s.store.DownloadResult(ctx, job.ID)
	} else {
		result.Result, err = s.inlineResult(ctx, job.ID)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// submit creates the job handle. Any failure here aborts before a handle is
// returned to the caller.
func (s *Submitter) submit(ctx context.Context, payload []byte, backend string, staged bool) (*domain.Job, error) {
	if !staged {
		return s.api.SubmitJob(ctx, backend, payload)
	}

	job, err := s.api.SubmitJobObjectStorage(ctx, backend)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.UploadPayload(ctx, job.ID, payload); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Submitter) awaitTerminal(ctx context.Context, jobID string, deadline time.Time, timeout time.Duration) (domain.JobStatus, error) {
	event, err := s.stream.JobFinalStatus(ctx, jobID, time.Until(deadline))
	if err == nil {
		return event.Status, nil
	}
	if errors.Is(err, api.ErrCancelled) || !api.FallbackEligible(err) {
		return "", err
	}

	s.log.Warn("status stream unavailable, falling back to polling",
		"job_id", jobID, "error", err)
	return s.pollTerminal(ctx, jobID, deadline, timeout)
}

// pollTerminal polls the status endpoint at a fixed interval until the job
// is terminal or the deadline is exhausted. The deadline is checked before
// each sleep so the wait never overshoots by more than one interval.
func (s *Submitter) pollTerminal(ctx context.Context, jobID string, deadline time.Time, timeout time.Duration) (domain.JobStatus, error) {
	for {
		status, err := s.api.JobStatus(ctx, jobID)
		if err != nil {
			return "", err
		}
		if status.IsTerminal() {
			return status, nil
		}

		if time.Until(deadline) <= 0 {
			return "", &api.TimeoutError{Op: "status poll wait", Budget: timeout}
		}

		select {
		case <-ctx.Done():
			return "", api.ErrCancelled
		case <-time.After(s.opts.PollInterval):
		}
	}
}

// inlineResult fetches the result document of an inline-submitted job from
// its job record.
func (s *Submitter) inlineResult(ctx context.Context, jobID string) ([]byte, error) {
	doc, err := s.api.GetJob(ctx, jobID, []string{"result"}, nil)
	if err != nil {
		return nil, err
	}

	raw, ok := doc["result"]
	if !ok {
		return nil, &api.ProtocolError{Reason: "completed job has no result field"}
	}
	return json.RawMessage(raw), nil
}
