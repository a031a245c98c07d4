// Package upstream talks to the Seoul bus arrival API and the KMA
// ultra-short-term forecast API.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Outcomes reported to an Observer for each request.
const (
	OutcomeOK        = "ok"
	OutcomeStatus    = "status"
	OutcomeTransport = "transport"
	OutcomeDecode    = "decode"
	OutcomeEmpty     = "empty"
)

// Observer receives one call per upstream request.
type Observer interface {
	UpstreamRequest(feed, outcome string)
}

// StatusError is returned when an upstream answers with a non-200 status.
type StatusError struct {
	Feed string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API 요청 실패: %d", e.Code)
}

// buildURL appends query to base. The service key is passed through as is:
// data.go.kr issues keys that are often already percent-encoded.
func buildURL(base, serviceKey string, query url.Values) string {
	return base + "?serviceKey=" + serviceKey + "&" + query.Encode()
}

type requester struct {
	http     *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	observer Observer
	feed     string
}

func (r *requester) get(ctx context.Context, rawURL string) (*http.Response, context.CancelFunc, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		cancel()
		r.observe(OutcomeTransport)
		return nil, nil, fmt.Errorf("%s request: %w", r.feed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		r.observe(OutcomeStatus)
		return nil, nil, &StatusError{Feed: r.feed, Code: resp.StatusCode}
	}
	return resp, cancel, nil
}

func (r *requester) observe(outcome string) {
	if r.observer != nil {
		r.observer.UpstreamRequest(r.feed, outcome)
	}
}

func newRequester(feed string, hc *http.Client, timeout time.Duration, limiter *rate.Limiter, obs Observer) requester {
	if hc == nil {
		hc = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return requester{http: hc, timeout: timeout, limiter: limiter, observer: obs, feed: feed}
}
