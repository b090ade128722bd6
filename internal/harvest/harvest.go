// Package harvest crawls county data sources for distress signals. Each
// source is an adapter over one feed (legal notices, delinquent tax rolls,
// probate dockets) emitting normalized CrawledRecords; the runner drives
// them in parallel and keeps one bad source from blocking its siblings.
package harvest

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/model"
)

// Source is one crawlable feed of distress signals.
type Source interface {
	// ID is the stable identifier recorded on events and audit entries.
	ID() string
	Name() string
	Crawl(ctx context.Context) ([]model.CrawledRecord, error)
}

// Registry holds the configured sources in registration order.
type Registry struct {
	sources []Source
	byID    map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

// Register adds a source. Duplicate IDs are rejected.
func (r *Registry) Register(s Source) error {
	if _, exists := r.byID[s.ID()]; exists {
		return eris.Errorf("harvest: duplicate source id %q", s.ID())
	}
	r.byID[s.ID()] = s
	r.sources = append(r.sources, s)
	return nil
}

// Get returns the source with the given ID, or nil.
func (r *Registry) Get(id string) Source {
	return r.byID[id]
}

// All returns the sources in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Except returns all sources whose IDs are not in skip.
func (r *Registry) Except(skip []string) []Source {
	skipSet := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipSet[id] = true
	}
	var out []Source
	for _, s := range r.sources {
		if !skipSet[s.ID()] {
			out = append(out, s)
		}
	}
	return out
}

// newHTTPClient builds the client the adapters share: per-request timeout
// so a hung county server cannot stall a cycle.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
