// Package testutil holds stand-ins for the decision engine and datafile source.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/TimurManjosov/flagedge/internal/decision"
)

// StaticDatafiles serves one datafile body for every key and counts calls.
type StaticDatafiles struct {
	Body string
	Err  error

	mu    sync.Mutex
	calls []DatafileCall
}

// DatafileCall records one Fetch.
type DatafileCall struct {
	SDKKey string
	TTL    time.Duration
}

// Fetch implements decider.DatafileSource.
func (s *StaticDatafiles) Fetch(_ context.Context, sdkKey string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, DatafileCall{SDKKey: sdkKey, TTL: ttl})
	s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return s.Body, nil
}

// Calls returns the recorded fetches.
func (s *StaticDatafiles) Calls() []DatafileCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DatafileCall(nil), s.calls...)
}

// FakeFactory builds engines that answer from Flags. A flag missing from Flags decides
// as not enabled, like an unknown flag in the real SDK. An empty datafile fails
// construction with decision.ErrEngine.
type FakeFactory struct {
	Flags    map[string]bool
	Revision string

	mu      sync.Mutex
	engines []*FakeEngine
}

// NewEngine implements decision.Factory.
func (f *FakeFactory) NewEngine(_ context.Context, datafile string, opts decision.Options) (decision.Engine, error) {
	if datafile == "" {
		return nil, fmt.Errorf("%w: empty datafile", decision.ErrEngine)
	}
	e := &FakeEngine{flags: f.Flags, revision: f.Revision, Options: opts, Datafile: datafile}
	f.mu.Lock()
	f.engines = append(f.engines, e)
	f.mu.Unlock()
	return e, nil
}

// Engines returns every engine built so far.
func (f *FakeFactory) Engines() []*FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeEngine(nil), f.engines...)
}

// FakeEngine is a decision.Engine with canned answers.
type FakeEngine struct {
	Options  decision.Options
	Datafile string

	flags    map[string]bool
	revision string

	mu          sync.Mutex
	closed      bool
	configCalls int
	users       []string
	attributes  []map[string]any
}

func (e *FakeEngine) CreateUserContext(userID string, attributes map[string]any) decision.UserContext {
	e.mu.Lock()
	e.users = append(e.users, userID)
	e.attributes = append(e.attributes, attributes)
	e.mu.Unlock()
	return &fakeUserContext{engine: e, userID: userID}
}

func (e *FakeEngine) Config() decision.ConfigSummary {
	e.mu.Lock()
	e.configCalls++
	e.mu.Unlock()
	keys := make([]string, 0, len(e.flags))
	for k := range e.flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return decision.ConfigSummary{Revision: e.revision, FlagKeys: keys}
}

func (e *FakeEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Closed reports whether Close was called.
func (e *FakeEngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// ConfigCalls reports how often Config was called.
func (e *FakeEngine) ConfigCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configCalls
}

// Users returns the visitor ids contexts were created for, with their attributes.
func (e *FakeEngine) Users() ([]string, []map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.users...), append([]map[string]any(nil), e.attributes...)
}

type fakeUserContext struct {
	engine *FakeEngine
	userID string
}

func (u *fakeUserContext) UserID() string { return u.userID }

func (u *fakeUserContext) Decide(flagKey string) decision.Decision {
	enabled, ok := u.engine.flags[flagKey]
	d := decision.Decision{FlagKey: flagKey, Enabled: enabled, UserID: u.userID}
	if !ok {
		d.Reasons = []string{fmt.Sprintf("No flag was found for key %q.", flagKey)}
	}
	return d
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
