// Package techinfo captures a best-effort technical-context snapshot
// (public IP) for user messages. Lookups never fail into the pipeline:
// any error degrades to an empty snapshot.
package techinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Provider yields a technical-context snapshot for the current request.
type Provider interface {
	Lookup(ctx context.Context) *Snapshot
}

// Snapshot holds whatever technical context could be detected.
type Snapshot struct {
	IP string `json:"ip,omitempty"`
}

// HTTPProvider queries an ipify-style endpoint returning {"ip": "..."}.
type HTTPProvider struct {
	client *resty.Client
	url    string
}

// NewHTTPProvider creates a provider for the given lookup URL.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	c := resty.New().SetTimeout(timeout)
	return &HTTPProvider{client: c, url: url}
}

// Lookup returns the detected snapshot, or an empty one on any failure.
func (p *HTTPProvider) Lookup(ctx context.Context) *Snapshot {
	if p.url == "" {
		return &Snapshot{}
	}
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil || resp.StatusCode() != http.StatusOK {
		return &Snapshot{}
	}
	var out Snapshot
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return &Snapshot{}
	}
	return &out
}
