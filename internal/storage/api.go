package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/errors"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// DateTimeFormat is the layout of the datetime field sent to the API.
const DateTimeFormat = "2006-01-02 15:04:05"

// APIConfig configures the API sender.
type APIConfig struct {
	URL string
	Key string

	// Timeout bounds a single request (default: 10s).
	Timeout time.Duration

	// InitialInterval is the first retry delay (default: 500ms).
	InitialInterval time.Duration

	// MaxElapsed bounds all attempts of one save (default: 30s).
	MaxElapsed time.Duration
}

// API posts every profile as a form to the collection API. Transport errors
// and 5xx responses are retried with exponential backoff; any other non-200
// response fails immediately.
type API struct {
	cfg    APIConfig
	packer codec.Packer
	client *http.Client
	logger zerolog.Logger
}

// NewAPI creates an API sender.
func NewAPI(cfg APIConfig, packer codec.Packer, logger zerolog.Logger) (*API, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("api storage requires an api url")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", cfg.URL)
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("api storage requires an api key")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}

	return &API{
		cfg:    cfg,
		packer: packer,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "profile_api_storage").Logger(),
	}, nil
}

// Save implements liveprof.Storage.
func (s *API) Save(ctx context.Context, app, label string, ts time.Time, data profiledata.Data) error {
	payload, err := s.packer.Pack(data)
	if err != nil {
		return err
	}

	form := url.Values{
		"api_key":  {s.cfg.Key},
		"app":      {app},
		"label":    {label},
		"datetime": {ts.Format(DateTimeFormat)},
		"data":     {string(payload)},
	}
	body := form.Encode()

	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = s.cfg.InitialInterval
	expBackOff.MaxElapsedTime = s.cfg.MaxElapsed

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		err := s.post(ctx, body)
		if err != nil && ctx.Err() == nil {
			s.logger.Debug().Err(err).Int("attempt", attempts).Msg("Failed to send profile")
		}
		return err
	}, backoff.WithContext(expBackOff, ctx))
	if err != nil {
		return fmt.Errorf("failed to send profile after %d attempts: %w", attempts, err)
	}

	return nil
}

// post sends one request. Errors that must not be retried are wrapped with
// backoff.Permanent.
func (s *API) post(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer errors.DeferClose(s.logger, resp.Body, "failed to close response body")
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("api returned %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("api returned %s", resp.Status))
	}
}
