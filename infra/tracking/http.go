package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/flipnotify/auth"
	coretracking "github.com/kilianp07/flipnotify/core/tracking"
)

// HTTPConfig configures the analytics endpoint deliveries are posted to.
type HTTPConfig struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
	Auth     auth.Conf     `json:"auth"`
}

// HTTPTracker posts each delivery as JSON. When credentials are configured
// the request carries an OAuth2 bearer token; a 401 forces one refresh and a
// single resend.
type HTTPTracker struct {
	endpoint string
	client   *http.Client
	creds    *auth.ClientCred
}

// NewHTTPTracker validates cfg and builds the tracker.
func NewHTTPTracker(cfg HTTPConfig) (*HTTPTracker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http tracker: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	t := &HTTPTracker{endpoint: cfg.Endpoint, client: &http.Client{Timeout: cfg.Timeout}}
	if cfg.Auth.Enabled() {
		t.creds = auth.NewClientCred(cfg.Auth)
	}
	return t, nil
}

// RecordDelivery posts d. The receiving API deduplicates on the
// Idempotency-Key header.
func (t *HTTPTracker) RecordDelivery(ctx context.Context, d coretracking.Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	status, err := t.post(ctx, d.Key(), body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && t.creds != nil {
		if _, err := t.creds.ForceRefresh(ctx); err != nil {
			return err
		}
		if status, err = t.post(ctx, d.Key(), body); err != nil {
			return err
		}
	}
	if status >= 300 {
		return fmt.Errorf("http tracker: unexpected status %d", status)
	}
	return nil
}

func (t *HTTPTracker) post(ctx context.Context, key string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if t.creds != nil {
		if err := t.creds.SetAuthHeader(req); err != nil {
			return 0, err
		}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}
