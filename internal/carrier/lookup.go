package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/InfradynAB/infradyn1-sub007/internal/resilience"
)

// TrackingDetail is the payload returned by a carrier tracking lookup.
type TrackingDetail struct {
	ContainerID  string     `json:"container_id"`
	Status       string     `json:"status,omitempty"`
	Location     string     `json:"location,omitempty"`
	Vessel       string     `json:"vessel,omitempty"`
	EstimatedETA *time.Time `json:"estimated_eta,omitempty"`
}

// Lookup queries carrier tracking APIs for container detail. Endpoint
// variants are tried in priority order with first-success semantics; the
// API shape differs by integration path, so several variants are usually
// configured. Every attempt is rate-limited and has a bounded timeout so a
// slow carrier can never stall a batch scan.
type Lookup struct {
	endpoints []string
	apiKey    string
	client    *http.Client
	limiter   *rate.Limiter
	retry     resilience.Policy
}

// LookupOptions configures a Lookup client.
type LookupOptions struct {
	Endpoints      []string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	RequestsPerSec float64
}

// NewLookup creates a carrier lookup client.
func NewLookup(opts LookupOptions) *Lookup {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	retry := resilience.DefaultPolicy()
	if opts.MaxRetries > 0 {
		retry.MaxAttempts = opts.MaxRetries
	}
	return &Lookup{
		endpoints: opts.Endpoints,
		apiKey:    opts.APIKey,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		retry:     retry,
	}
}

// Track fetches tracking detail for a container. Each configured endpoint
// variant is tried in order; the first success wins. The caller decides
// what to do when all variants fail (skip, or leave the event for the next
// scheduled pass).
func (l *Lookup) Track(ctx context.Context, containerID string) (*TrackingDetail, error) {
	if len(l.endpoints) == 0 {
		return nil, eris.New("carrier: no lookup endpoints configured")
	}

	var lastErr error
	for _, base := range l.endpoints {
		detail, err := resilience.Do(ctx, l.retry, "carrier.track",
			func(ctx context.Context) (*TrackingDetail, error) {
				return l.fetch(ctx, base, containerID)
			})
		if err == nil {
			return detail, nil
		}
		lastErr = err
		zap.L().Debug("carrier: endpoint variant failed, trying next",
			zap.String("endpoint", base),
			zap.String("container", containerID),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, eris.Wrap(lastErr, "carrier: all endpoint variants failed")
}

func (l *Lookup) fetch(ctx context.Context, base, containerID string) (*TrackingDetail, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "carrier: rate limiter")
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), containerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "carrier: create request")
	}
	req.Header.Set("Accept", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "carrier: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.Transient(
			eris.Errorf("carrier: lookup returned status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("carrier: lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "carrier: read body")
	}

	var detail TrackingDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, eris.Wrap(err, "carrier: decode body")
	}
	if detail.ContainerID == "" {
		detail.ContainerID = containerID
	}
	return &detail, nil
}
