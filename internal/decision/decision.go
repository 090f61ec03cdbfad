// Package decision defines the narrow contract the request handler needs from a
// decisioning engine: build an engine from datafile text, derive a per-visitor context,
// and evaluate one flag for it. The Optimizely SDK is one implementation; tests use fakes.
package decision

import (
	"context"
	"errors"
	"fmt"
)

// ErrEngine wraps every failure to build an engine from a datafile.
var ErrEngine = errors.New("decision engine construction failed")

// LogLevel is the engine's own log verbosity. It is fixed when the factory is built.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// Event is an impression or conversion the engine wants delivered to its telemetry backend.
type Event struct {
	URL    string `json:"url"`
	Params any    `json:"params"`
}

// Dispatcher delivers engine events. Dispatch must not wait for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// Options configure an engine. A nil Dispatcher means events are dropped.
type Options struct {
	Dispatcher Dispatcher
}

// Factory builds an engine from datafile text.
type Factory interface {
	NewEngine(ctx context.Context, datafile string, opts Options) (Engine, error)
}

// Engine evaluates flags against one datafile.
type Engine interface {
	CreateUserContext(userID string, attributes map[string]any) UserContext
	Config() ConfigSummary
	Close()
}

// UserContext is one visitor's evaluation input.
type UserContext interface {
	UserID() string
	Decide(flagKey string) Decision
}

// Decision is the outcome of evaluating one flag for one visitor.
// UserID is read back from the context that produced it.
type Decision struct {
	FlagKey      string   `json:"flagKey"`
	Enabled      bool     `json:"enabled"`
	UserID       string   `json:"userId"`
	VariationKey string   `json:"variationKey,omitempty"`
	RuleKey      string   `json:"ruleKey,omitempty"`
	Reasons      []string `json:"reasons,omitempty"`
}

// ConfigSummary is what an engine reports about its loaded datafile.
type ConfigSummary struct {
	Revision       string   `json:"revision"`
	SDKKey         string   `json:"sdkKey,omitempty"`
	EnvironmentKey string   `json:"environmentKey,omitempty"`
	FlagKeys       []string `json:"flags"`
}

// Message renders the response text for d.
func (d Decision) Message() string {
	state := "Not Enabled"
	if d.Enabled {
		state = "Enabled"
	}
	return fmt.Sprintf(`The Flag "%s" was %s for the user "%s"`, d.FlagKey, state, d.UserID)
}
