// Package api implements the control-plane REST client: job submission,
// field-filtered job fetch, locator exchange for object storage, and the
// backend listing endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"qjob/internal/qjob/domain"
	"qjob/pkg/logger"
)

// Version is reported to the service in the client-application header.
const Version = "0.1.0"

const defaultClientApplication = "qjob/" + Version

// Config carries everything a Client needs at construction. A Client never
// reads the environment itself; the caller resolves configuration and passes
// it in, so concurrent clients with different settings cannot interfere.
type Config struct {
	BaseURL string
	Token   string
	// ClientApplication, when set, is appended to the default
	// X-Qx-Client-Application value.
	ClientApplication string
	Timeout           time.Duration
	HTTPClient        *http.Client
}

type Client struct {
	baseURL   *url.URL
	token     string
	appHeader string
	http      *http.Client
	log       *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ConnectError{URL: cfg.BaseURL, Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return nil, &ConnectError{URL: cfg.BaseURL, Err: fmt.Errorf("malformed base url")}
	}

	appHeader := defaultClientApplication
	if cfg.ClientApplication != "" {
		appHeader = appHeader + ":" + cfg.ClientApplication
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	if log == nil {
		log = logger.New()
	}

	return &Client{
		baseURL:   parsed,
		token:     cfg.Token,
		appHeader: appHeader,
		http:      httpClient,
		log:       log.WithField("component", "api"),
	}, nil
}

// ClientApplication returns the value sent in the X-Qx-Client-Application
// header.
func (c *Client) ClientApplication() string {
	return c.appHeader
}

// SubmitJob submits a job with the payload inlined in the request body.
// The payload is spliced into the envelope verbatim: the service must see
// the caller's exact bytes, and json.Marshal compacts an embedded
// RawMessage.
func (c *Client) SubmitJob(ctx context.Context, backend string, payload json.RawMessage) (*domain.Job, error) {
	backendJSON, err := json.Marshal(map[string]string{"name": backend})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	var body bytes.Buffer
	body.WriteString(`{"backend":`)
	body.Write(backendJSON)
	body.WriteString(`,"qObject":`)
	if len(payload) == 0 {
		body.WriteString("null")
	} else {
		body.Write(payload)
	}
	body.WriteByte('}')

	var job domain.Job
	if err := c.do(ctx, http.MethodPost, "jobs", nil, json.RawMessage(body.Bytes()), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SubmitJobObjectStorage registers a job whose payload will be staged
// through object storage. The returned job carries the external-storage
// kind and no payload yet.
func (c *Client) SubmitJobObjectStorage(ctx context.Context, backend string) (*domain.Job, error) {
	body := map[string]interface{}{
		"backend": map[string]string{"name": backend},
		"kind":    domain.KindObjectStorage,
	}

	var job domain.Job
	if err := c.do(ctx, http.MethodPost, "jobs", nil, body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a job document. Fields named in include restrict the
// response to those fields; fields named in exclude are removed. Unknown
// names in either list are ignored by the service.
func (c *Client) GetJob(ctx context.Context, jobID string, include, exclude []string) (map[string]json.RawMessage, error) {
	query := url.Values{}
	if len(include) > 0 {
		query.Set("include", strings.Join(include, ","))
	}
	if len(exclude) > 0 {
		query.Set("exclude", strings.Join(exclude, ","))
	}

	var doc map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "jobs/"+jobID, query, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// JobStatus fetches the current status of a job through the polling path.
func (c *Client) JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "jobs/"+jobID+"/status", nil, nil, &resp); err != nil {
		return "", err
	}

	status, err := domain.ParseStatus(resp.Status)
	if err != nil {
		return "", &ProtocolError{Reason: "job status response", Err: err}
	}
	return status, nil
}

// Jobs lists the caller's most recent jobs.
func (c *Client) Jobs(ctx context.Context, limit int) ([]domain.Job, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}

	var jobs []domain.Job
	if err := c.do(ctx, http.MethodGet, "jobs", query, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// PresignedURL is a time-limited reference for one direct storage transfer.
type PresignedURL struct {
	URL    string    `json:"url"`
	Expiry time.Time `json:"expiry"`
}

// JobUploadURL obtains a pre-signed location for uploading the job payload.
func (c *Client) JobUploadURL(ctx context.Context, jobID string) (*PresignedURL, error) {
	var loc PresignedURL
	if err := c.do(ctx, http.MethodGet, "jobs/"+jobID+"/jobUploadUrl", nil, nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// JobDownloadURL obtains a pre-signed location for downloading the payload
// previously uploaded for a job.
func (c *Client) JobDownloadURL(ctx context.Context, jobID string) (*PresignedURL, error) {
	var loc PresignedURL
	if err := c.do(ctx, http.MethodGet, "jobs/"+jobID+"/jobDownloadUrl", nil, nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// JobResultURL obtains a pre-signed location for downloading a completed
// job's result.
func (c *Client) JobResultURL(ctx context.Context, jobID string) (*PresignedURL, error) {
	var loc PresignedURL
	if err := c.do(ctx, http.MethodGet, "jobs/"+jobID+"/resultDownloadUrl", nil, nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// ConfirmUpload tells the control plane the payload object is in place.
// The storage write and the job-ready transition are not atomic, hence the
// separate call.
func (c *Client) ConfirmUpload(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, http.MethodPost, "jobs/"+jobID+"/jobDataUploaded", nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// BackendInfo is one entry of the backend listing.
type BackendInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Backends lists the backends available to the caller.
func (c *Client) Backends(ctx context.Context) ([]BackendInfo, error) {
	var backends []BackendInfo
	if err := c.do(ctx, http.MethodGet, "Backends", nil, nil, &backends); err != nil {
		return nil, err
	}
	return backends, nil
}

// BackendStatus describes the availability of one backend.
type BackendStatus struct {
	Operational bool   `json:"operational"`
	Pending     int    `json:"pending_jobs"`
	Message     string `json:"status_msg,omitempty"`
}

func (c *Client) BackendStatus(ctx context.Context, name string) (*BackendStatus, error) {
	var status BackendStatus
	if err := c.do(ctx, http.MethodGet, "backends/"+name+"/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// BackendProperties returns the calibration document of a backend. The
// document is opaque to this client.
func (c *Client) BackendProperties(ctx context.Context, name string) (json.RawMessage, error) {
	var props json.RawMessage
	if err := c.do(ctx, http.MethodGet, "backends/"+name+"/properties", nil, nil, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// APIVersion returns the version reported by the service.
func (c *Client) APIVersion(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "version", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		// A RawMessage body is pre-assembled and goes on the wire as-is.
		data, ok := body.(json.RawMessage)
		if !ok {
			var err error
			data, err = json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to encode request body: %w", err)
			}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return &ConnectError{URL: target.String(), Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Qx-Client-Application", c.appHeader)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("control-plane request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return &ConnectError{URL: target.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(target.String(), resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("decoding %s response", path), Err: err}
	}
	return nil
}

// errorFromResponse maps a non-2xx response onto the error taxonomy. The
// error body schema is {"error": {"code": ..., "message": ...}}; both code
// and message are preserved in the surfaced error text.
func (c *Client) errorFromResponse(url string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var parsed struct {
		Error struct {
			Code    json.RawMessage `json:"code"`
			Message string          `json:"message"`
		} `json:"error"`
	}

	code := "UNKNOWN"
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
		if len(parsed.Error.Code) > 0 {
			code = strings.Trim(string(parsed.Error.Code), `"`)
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Code: code, Message: message}

	// Credential rejection belongs with connection establishment failures,
	// not with ordinary API errors.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &ConnectError{URL: url, Err: apiErr}
	}
	return apiErr
}
