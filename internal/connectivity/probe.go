// Package connectivity answers "is the network reachable" before a remote attempt.
package connectivity

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Probe reports whether the remote service is reachable right now.
type Probe interface {
	Online(ctx context.Context) bool
}

const probeTimeout = 2 * time.Second

// HTTPProbe checks reachability with a HEAD request against a health URL.
// Any HTTP response counts as reachable; only transport failures mean offline.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe probes baseURL + "/health".
func NewHTTPProbe(baseURL string) *HTTPProbe {
	return &HTTPProbe{
		url:    strings.TrimRight(baseURL, "/") + "/health",
		client: &http.Client{Timeout: probeTimeout},
	}
}

func (p *HTTPProbe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Switch is a Probe whose answer is set by hand. The zero value is offline.
type Switch struct {
	online atomic.Bool
}

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.online.Store(online)
	return s
}

func (s *Switch) Set(online bool) { s.online.Store(online) }

func (s *Switch) Online(context.Context) bool { return s.online.Load() }
