// Package authority queries an external name-authority service (VIAF/LCNAF)
// and caches results in Redis so repeated names do not refetch.
package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"

	procerrors "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/errors"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/normalizers"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Record is a canonical identity returned by the authority service.
type Record struct {
	Name  string `json:"name"`
	Viaf  string `json:"viaf,omitempty"`
	Lcnaf string `json:"lcnaf,omitempty"`
}

// Lookup resolves a free-text name to a canonical authority record. A nil
// Record with a nil error means the service had no match.
type Lookup interface {
	LookupName(ctx context.Context, name string) (*Record, error)
}

// Cache is the subset of the Redis client the lookup uses.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Config holds authority client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Enabled  bool
}

// Client is the HTTP authority-lookup collaborator.
type Client struct {
	http   *http.Client
	cfg    Config
	cache  Cache
	logger ectologger.Logger
}

// NewClient creates a new authority lookup client
func NewClient(cfg Config, cache Cache, logger ectologger.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cache:  cache,
		logger: logger,
	}
}

// notFoundSentinel is the cached value for a confirmed miss, so repeat
// lookups of unknown names stay local until the TTL expires.
const notFoundSentinel = `{"miss":true}`

type cachedRecord struct {
	Record
	Miss bool `json:"miss,omitempty"`
}

// LookupName resolves a cleaned name against the authority service. Cache
// failures are ignored; a cache miss just triggers a fresh lookup.
func (c *Client) LookupName(ctx context.Context, name string) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "authority.Client.LookupName")
	defer span.End()

	if !c.cfg.Enabled || c.cfg.BaseURL == "" {
		return nil, nil
	}

	key := cacheKey(name)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key); err == nil {
			var rec cachedRecord
			if err := json.Unmarshal([]byte(cached), &rec); err == nil {
				if rec.Miss {
					return nil, nil
				}
				return &rec.Record, nil
			}
		}
	}

	rec, err := c.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		value := notFoundSentinel
		if rec != nil {
			if b, err := json.Marshal(rec); err == nil {
				value = string(b)
			}
		}
		if err := c.cache.Set(ctx, key, value, c.cfg.CacheTTL); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to cache authority result")
		}
	}

	return rec, nil
}

func (c *Client) fetch(ctx context.Context, name string) (*Record, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s", c.cfg.BaseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, procerrors.Newf(procerrors.KindExternalService, "failed to build authority request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, procerrors.Newf(procerrors.KindExternalService, "authority lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, procerrors.Newf(procerrors.KindExternalService, "authority lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, procerrors.Newf(procerrors.KindExternalService, "failed to read authority response: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, procerrors.Newf(procerrors.KindExternalService, "failed to decode authority response: %w", err)
	}
	if rec.Name == "" && rec.Viaf == "" && rec.Lcnaf == "" {
		return nil, nil
	}

	return &rec, nil
}

func cacheKey(name string) string {
	return "authority:name:" + normalizers.NormalizeName(name)
}
