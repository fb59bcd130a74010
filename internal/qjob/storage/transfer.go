// Package storage moves job payloads and results through the object-storage
// indirection: obtain a pre-signed locator from the control plane, transfer
// the body directly against it, then signal completion.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"qjob/internal/qjob/api"
	"qjob/internal/qjob/domain"
	"qjob/pkg/logger"
)

type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

var (
	ErrLocatorReused  = errors.New("locator already used")
	ErrLocatorExpired = errors.New("locator expired")
)

// Locator is a short-lived, single-use reference granting direct access to
// upload or download one payload. It must not be cached across retries; a
// retry fetches a fresh locator.
type Locator struct {
	Direction Direction
	URL       string
	Expiry    time.Time

	mu   sync.Mutex
	used bool
}

// claim marks the locator consumed. Reuse after the declared transfer and
// use past expiry are both rejected rather than silently retried.
func (l *Locator) claim() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.used {
		return ErrLocatorReused
	}
	if !l.Expiry.IsZero() && time.Now().After(l.Expiry) {
		return ErrLocatorExpired
	}
	l.used = true
	return nil
}

// LocatorSource is the control-plane surface the transfer layer needs.
// *api.Client satisfies it.
type LocatorSource interface {
	JobUploadURL(ctx context.Context, jobID string) (*api.PresignedURL, error)
	JobDownloadURL(ctx context.Context, jobID string) (*api.PresignedURL, error)
	JobResultURL(ctx context.Context, jobID string) (*api.PresignedURL, error)
	ConfirmUpload(ctx context.Context, jobID string) (*domain.Job, error)
}

type Transfer struct {
	source LocatorSource
	http   *http.Client
	log    *logger.Logger
}

func NewTransfer(source LocatorSource, httpClient *http.Client, log *logger.Logger) *Transfer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = logger.New()
	}
	return &Transfer{
		source: source,
		http:   httpClient,
		log:    log.WithField("component", "storage"),
	}
}

// RequestUploadLocator asks the control plane for a pre-signed upload
// location for the job's payload.
func (t *Transfer) RequestUploadLocator(ctx context.Context, jobID string) (*Locator, error) {
	presigned, err := t.source.JobUploadURL(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &Locator{Direction: DirectionUpload, URL: presigned.URL, Expiry: presigned.Expiry}, nil
}

// RequestDownloadLocator asks for a pre-signed location of the payload
// previously uploaded for the job.
func (t *Transfer) RequestDownloadLocator(ctx context.Context, jobID string) (*Locator, error) {
	presigned, err := t.source.JobDownloadURL(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &Locator{Direction: DirectionDownload, URL: presigned.URL, Expiry: presigned.Expiry}, nil
}

// RequestResultLocator asks for a pre-signed location of a completed job's
// result document.
func (t *Transfer) RequestResultLocator(ctx context.Context, jobID string) (*Locator, error) {
	presigned, err := t.source.JobResultURL(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &Locator{Direction: DirectionDownload, URL: presigned.URL, Expiry: presigned.Expiry}, nil
}

// Put transfers the body to an upload locator. The locator is consumed even
// on failure; Put never retries because locator idempotency across retries
// is not guaranteed.
func (t *Transfer) Put(ctx context.Context, loc *Locator, body []byte) error {
	if loc.Direction != DirectionUpload {
		return &api.TransferError{Direction: string(DirectionUpload), URL: loc.URL,
			Err: fmt.Errorf("locator direction is %s", loc.Direction)}
	}
	if err := loc.claim(); err != nil {
		return &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, loc.URL, bytes.NewReader(body))
	if err != nil {
		return &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	t.log.Debug("uploading payload", "url", loc.URL, "bytes", len(body))

	resp, err := t.http.Do(req)
	if err != nil {
		return &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &api.TransferError{Direction: string(loc.Direction), URL: loc.URL,
			Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	return nil
}

// Get transfers the body from a download locator. Same single-use,
// no-retry discipline as Put.
func (t *Transfer) Get(ctx context.Context, loc *Locator) ([]byte, error) {
	if loc.Direction != DirectionDownload {
		return nil, &api.TransferError{Direction: string(DirectionDownload), URL: loc.URL,
			Err: fmt.Errorf("locator direction is %s", loc.Direction)}
	}
	if err := loc.claim(); err != nil {
		return nil, &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return nil, &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &api.TransferError{Direction: string(loc.Direction), URL: loc.URL,
			Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &api.TransferError{Direction: string(loc.Direction), URL: loc.URL, Err: err}
	}
	return data, nil
}

// SignalUploadComplete tells the control plane the payload object is in
// place. Kept separate from Put: the storage write and the job-ready
// transition are not atomic.
func (t *Transfer) SignalUploadComplete(ctx context.Context, jobID string) (*domain.Job, error) {
	return t.source.ConfirmUpload(ctx, jobID)
}

// UploadPayload runs the full staging sequence for one payload: locator,
// body transfer, completion callback.
func (t *Transfer) UploadPayload(ctx context.Context, jobID string, payload []byte) (*domain.Job, error) {
	loc, err := t.RequestUploadLocator(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := t.Put(ctx, loc, payload); err != nil {
		return nil, err
	}
	return t.SignalUploadComplete(ctx, jobID)
}

// DownloadResult fetches a completed job's result body.
func (t *Transfer) DownloadResult(ctx context.Context, jobID string) ([]byte, error) {
	loc, err := t.RequestResultLocator(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return t.Get(ctx, loc)
}

// DownloadPayload fetches back the payload originally uploaded for a job.
func (t *Transfer) DownloadPayload(ctx context.Context, jobID string) ([]byte, error) {
	loc, err := t.RequestDownloadLocator(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return t.Get(ctx, loc)
}
