package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"qjob/internal/qjob/api"
	"qjob/internal/qjob/domain"
	"qjob/pkg/logger"
)

// frameSchema is the contract a status frame must satisfy. A frame that
// parses as JSON but fails this schema is a protocol error, distinct from
// a timeout, because the orchestrator uses the distinction to decide
// whether polling fallback applies.
var frameSchema = jsonschema.MustCompileString("status-frame.json", `{
	"type": "object",
	"required": ["status"],
	"properties": {
		"job_id": {"type": "string"},
		"status": {"type": "string"}
	}
}`)

// StatusEvent is one decoded status frame.
type StatusEvent struct {
	JobID  string
	Status domain.JobStatus
	Raw    json.RawMessage
}

type subscribeFrame struct {
	JobID string `json:"job_id"`
	Token string `json:"token"`
}

// Client waits for job status transitions over the streaming endpoint.
type Client struct {
	wsURL string
	token string
	log   *logger.Logger
}

func NewClient(wsURL, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.New()
	}
	return &Client{
		wsURL: wsURL,
		token: token,
		log:   log.WithField("component", "stream"),
	}
}

// JobFinalStatus opens a channel, subscribes to the job's status feed and
// blocks until a terminal status arrives. The timeout is a single
// end-to-end budget for the whole wait; it is not reset by non-terminal
// frames. The channel is closed on every exit path.
//
// Failure modes: ConnectError (dial), TimeoutError (budget exhausted),
// ProtocolError (malformed frame or early close), ErrCancelled (ctx).
func (c *Client) JobFinalStatus(ctx context.Context, jobID string, timeout time.Duration) (*StatusEvent, error) {
	if timeout <= 0 {
		return nil, &api.TimeoutError{Op: "status stream wait", Budget: timeout}
	}
	deadline := time.Now().Add(timeout)

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ch, err := Dial(dialCtx, c.wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, api.ErrCancelled
		}
		// A dial cut short by the wait budget is a timeout, not a
		// connection failure; it must not make the caller eligible for
		// polling fallback.
		if dialCtx.Err() != nil {
			return nil, &api.TimeoutError{Op: "status stream wait", Budget: timeout}
		}
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	// Cancellation must close the channel promptly so the blocked read
	// returns instead of running out the read deadline.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-watcherDone:
		}
	}()

	if err := ch.Send(subscribeFrame{JobID: jobID, Token: c.token}); err != nil {
		return nil, &api.ProtocolError{Reason: "sending subscribe frame", Err: err}
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &api.TimeoutError{Op: "status stream wait", Budget: timeout}
		}

		data, err := ch.Receive(remaining)
		if err != nil {
			if ctx.Err() != nil {
				return nil, api.ErrCancelled
			}
			var timeoutErr *api.TimeoutError
			if errors.As(err, &timeoutErr) {
				return nil, &api.TimeoutError{Op: "status stream wait", Budget: timeout}
			}
			return nil, &api.ProtocolError{Reason: "channel closed before terminal status", Err: err}
		}

		event, err := decodeFrame(data)
		if err != nil {
			return nil, err
		}

		if event.Status.IsTerminal() {
			return event, nil
		}
		c.log.Debug("job status transition", "job_id", jobID, "status", event.Status)
	}
}

func decodeFrame(data []byte) (*StatusEvent, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &api.ProtocolError{Reason: "frame is not valid JSON", Err: err}
	}

	if err := frameSchema.Validate(doc); err != nil {
		return nil, &api.ProtocolError{Reason: "frame failed schema validation", Err: err}
	}

	var frame struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, &api.ProtocolError{Reason: "frame failed schema validation", Err: err}
	}

	status, err := domain.ParseStatus(frame.Status)
	if err != nil {
		return nil, &api.ProtocolError{Reason: "frame carries unknown status", Err: err}
	}

	return &StatusEvent{JobID: frame.JobID, Status: status, Raw: data}, nil
}
