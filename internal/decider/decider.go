// Package decider runs the decision pipeline for one request:
//
//  1. fetch the datafile for the SDK key (cached for DatafileTTL)
//  2. generate a fresh visitor id
//  3. build a decision engine from the datafile
//  4. create the visitor context with no attributes
//  5. decide the configured flag and render the message
//
// Nothing is recovered locally. A fetch or engine failure is returned to the caller, which
// answers with a generic error instead of a decision message.
package decider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/config"
	"github.com/TimurManjosov/flagedge/internal/decision"
	"github.com/TimurManjosov/flagedge/internal/telemetry"
)

// DefaultDatafileTTL is how long a datafile may be reused before it is fetched again.
const DefaultDatafileTTL = 600 * time.Second

// DatafileSource returns datafile text for an SDK key.
type DatafileSource interface {
	Fetch(ctx context.Context, sdkKey string, ttl time.Duration) (string, error)
}

// Result is what one request produced.
type Result struct {
	Message  string
	Decision decision.Decision
}

// Decider wires a datafile source, an engine factory and an optional event dispatcher.
type Decider struct {
	datafiles  DatafileSource
	engines    decision.Factory
	dispatcher decision.Dispatcher
	ttl        time.Duration
	newID      func() string
}

// Option configures a Decider.
type Option func(*Decider)

// WithDatafileTTL overrides DefaultDatafileTTL.
func WithDatafileTTL(ttl time.Duration) Option {
	return func(d *Decider) { d.ttl = ttl }
}

// WithIDGenerator replaces the visitor id source.
func WithIDGenerator(newID func() string) Option {
	return func(d *Decider) { d.newID = newID }
}

// New returns a Decider. dispatcher may be nil; it is only used for requests that enable
// event dispatch.
func New(datafiles DatafileSource, engines decision.Factory, dispatcher decision.Dispatcher, opts ...Option) *Decider {
	d := &Decider{
		datafiles:  datafiles,
		engines:    engines,
		dispatcher: dispatcher,
		ttl:        DefaultDatafileTTL,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide evaluates rc.FlagKey for a new visitor.
func (d *Decider) Decide(ctx context.Context, rc config.RequestConfig) (Result, error) {
	log := zerolog.Ctx(ctx)

	flagKey := rc.FlagKey
	if flagKey == "" {
		flagKey = config.DefaultFlagKey
	}
	log.Info().Str("sdk_key", rc.SDKKey).Str("flag_key", flagKey).Msg("deciding flag")

	datafile, err := d.datafiles.Fetch(ctx, rc.SDKKey, d.ttl)
	if err != nil {
		return Result{}, err
	}

	userID := d.newID()

	opts := decision.Options{}
	if rc.EventDispatchEnabled {
		opts.Dispatcher = d.dispatcher
	}
	engine, err := d.engines.NewEngine(ctx, datafile, opts)
	if err != nil {
		return Result{}, err
	}
	defer engine.Close()

	userCtx := engine.CreateUserContext(userID, map[string]any{})

	// inspected for the log only; it has no bearing on the decision
	summary := engine.Config()
	log.Debug().Str("revision", summary.Revision).Int("flags", len(summary.FlagKeys)).Msg("datafile loaded")

	dec := userCtx.Decide(flagKey)
	if dec.UserID != userID {
		log.Warn().Str("user_id", userID).Str("decision_user_id", dec.UserID).Msg("decision returned for a different user")
	}

	msg := dec.Message()
	telemetry.ObserveDecision(dec.FlagKey, dec.Enabled)
	log.Info().Msg(msg)

	return Result{Message: msg, Decision: dec}, nil
}
