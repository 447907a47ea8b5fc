package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/netx"
)

const (
	createTimeout   = 15 * time.Second
	uploadTimeout   = 10 * time.Second
	downloadTimeout = 8 * time.Second
	pingTimeout     = 5 * time.Second
)

// BinCache remembers which document store partition belongs to an email.
type BinCache interface {
	PartitionID(ctx context.Context, email string) (string, bool, error)
	SetPartitionID(ctx context.Context, email, id string) error
}

type HTTPOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = c }
}

func WithHTTPLogger(l logging.Logger) HTTPOption {
	return func(t *HTTPTransport) { t.log = l }
}

// HTTPTransport talks to the hosted document store. Each email owns one
// partition ("bin"), created on first upload and found by name from any
// device.
type HTTPTransport struct {
	baseURL   string
	masterKey string
	cache     BinCache
	client    *http.Client
	log       logging.Logger
}

func NewHTTPTransport(baseURL, masterKey string, cache BinCache, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:   strings.TrimRight(baseURL, "/"),
		masterKey: masterKey,
		cache:     cache,
		client:    netx.NewCachingClient(),
		log:       logging.Nop{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *HTTPTransport) Upload(ctx context.Context, email string, snap models.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	id, ok, err := t.binID(ctx, email)
	if err != nil {
		return err
	}
	if ok {
		_, err = t.do(ctx, uploadTimeout, http.MethodPut, "/b/"+url.PathEscape(id), data, nil)
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return mapStatus(err)
		}
		t.log.Warn(ctx, "remote partition vanished, recreating", "id", id)
	}

	return t.create(ctx, email, data)
}

func (t *HTTPTransport) Download(ctx context.Context, email string) (models.Snapshot, error) {
	id, ok, err := t.binID(ctx, email)
	if err != nil {
		return models.Snapshot{}, err
	}
	if !ok {
		return models.Snapshot{}, ErrAbsent
	}

	body, err := t.do(ctx, downloadTimeout, http.MethodGet, "/b/"+url.PathEscape(id), nil, nil)
	if err != nil {
		if isNotFound(err) {
			return models.Snapshot{}, ErrAbsent
		}
		return models.Snapshot{}, mapStatus(err)
	}

	var env models.BinEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: envelope: %v", models.ErrMalformedSnapshot, err)
	}
	if len(env.Record) == 0 {
		return models.Snapshot{}, fmt.Errorf("%w: empty record", models.ErrMalformedSnapshot)
	}
	return models.ParseSnapshot(env.Record)
}

func (t *HTTPTransport) Ping(ctx context.Context) error {
	_, err := t.do(ctx, pingTimeout, http.MethodGet, "/api/health", nil, nil)
	return mapStatus(err)
}

// binID returns the partition id for email, consulting the local cache
// first and the store's name index second.
func (t *HTTPTransport) binID(ctx context.Context, email string) (string, bool, error) {
	key := models.NormalizeEmail(email)

	id, ok, err := t.cache.PartitionID(ctx, key)
	if err != nil {
		t.log.Warn(ctx, "partition cache unreadable", "error", err)
	}
	if ok {
		return id, true, nil
	}

	q := url.Values{"name": {PartitionName(email)}}
	body, err := t.do(ctx, downloadTimeout, http.MethodGet, "/b?"+q.Encode(), nil, nil)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, mapStatus(err)
	}

	var env models.BinEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Metadata.ID == "" {
		return "", false, fmt.Errorf("%w: unexpected lookup reply", ErrUnavailable)
	}
	t.remember(ctx, key, env.Metadata.ID)
	return env.Metadata.ID, true, nil
}

func (t *HTTPTransport) create(ctx context.Context, email string, data []byte) error {
	hdr := http.Header{common.BinNameHeaderName: {PartitionName(email)}}
	body, err := t.do(ctx, createTimeout, http.MethodPost, "/b", data, hdr)
	if err != nil {
		return mapStatus(err)
	}

	var env models.BinEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Metadata.ID == "" {
		return fmt.Errorf("%w: unexpected create reply", ErrUnavailable)
	}
	t.log.Info(ctx, "remote partition created", "id", env.Metadata.ID)
	t.remember(ctx, models.NormalizeEmail(email), env.Metadata.ID)
	return nil
}

func (t *HTTPTransport) remember(ctx context.Context, email, id string) {
	if err := t.cache.SetPartitionID(ctx, email, id); err != nil {
		t.log.Warn(ctx, "failed to cache partition id", "error", err)
	}
}

func (t *HTTPTransport) do(ctx context.Context, timeout time.Duration, method, path string, body []byte, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(common.MasterKeyHeaderName, t.masterKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := netx.CheckResponse(resp); err != nil {
		return nil, err
	}
	if netx.FromCache(resp) {
		t.log.Debug(ctx, "remote document unchanged", "path", path)
	}

	return readLimited(resp.Body)
}

func isNotFound(err error) bool {
	var se *netx.StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

func mapStatus(err error) error {
	var se *netx.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Code == http.StatusUnauthorized, se.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case se.Code >= 500, se.Code == http.StatusTooManyRequests, se.Code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("remote error: %w", err)
	}
}
