// Package backend keeps the named upstreams outbound requests are routed through.
// A fetch always names its backend; there is no implicit default client.
package backend

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Names of the upstreams used by the decision service.
const (
	CDN  = "optlycdn"  // datafile CDN
	LogX = "optlylogx" // event/impression endpoint
)

// ErrUnknownBackend is returned when a request names a backend that was never registered.
var ErrUnknownBackend = errors.New("unknown backend")

// Registry maps backend names to HTTP clients. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*http.Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*http.Client)}
}

// Default returns a registry with CDN (no client timeout) and LogX (eventTimeout).
func Default(eventTimeout time.Duration) *Registry {
	r := NewRegistry()
	r.Register(CDN, &http.Client{})
	r.Register(LogX, &http.Client{Timeout: eventTimeout})
	return r
}

// Register adds or replaces the client used for name.
func (r *Registry) Register(name string, c *http.Client) {
	r.mu.Lock()
	r.clients[name] = c
	r.mu.Unlock()
}

// Client returns the client registered for name.
func (r *Registry) Client(name string) (*http.Client, error) {
	r.mu.RLock()
	c, ok := r.clients[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return c, nil
}

// Do sends req through the named backend.
func (r *Registry) Do(name string, req *http.Request) (*http.Response, error) {
	c, err := r.Client(name)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
