// Package optimizely implements decision.Factory on top of the Optimizely Go SDK.
//
// Every engine is built from datafile text with a static config manager, so the SDK never
// polls the CDN on its own; fetching and caching the datafile stays with the caller.
package optimizely

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/optimizely/go-sdk/v2/pkg/client"
	"github.com/optimizely/go-sdk/v2/pkg/config"
	"github.com/optimizely/go-sdk/v2/pkg/event"
	"github.com/optimizely/go-sdk/v2/pkg/logging"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/decision"
)

// The SDK has a single process-wide log consumer. It is installed once, by the first
// NewFactory, and never replaced while clients are running.
var installLogger sync.Once

// Factory builds SDK clients.
type Factory struct{}

// NewFactory returns a factory whose engines log through log at level. The first call
// decides the SDK's logger and level for the whole process; later calls reuse them.
func NewFactory(log zerolog.Logger, level decision.LogLevel) *Factory {
	sl := sdkLevel(level)
	installLogger.Do(func() {
		logging.SetLogger(newLogConsumer(log, sl))
		logging.SetLogLevel(sl)
	})
	return &Factory{}
}

// NewEngine parses datafile and returns a client ready to decide. A malformed or empty
// datafile fails here with decision.ErrEngine.
func (f *Factory) NewEngine(ctx context.Context, datafile string, opts decision.Options) (decision.Engine, error) {
	cm, err := config.NewStaticProjectConfigManagerFromPayload([]byte(datafile), logging.GetLogger("", "StaticProjectConfigManager"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", decision.ErrEngine, err)
	}

	factory := &client.OptimizelyFactory{}
	c, err := factory.Client(
		client.WithConfigManager(cm),
		client.WithEventDispatcher(newEventBridge(ctx, opts.Dispatcher)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", decision.ErrEngine, err)
	}
	return &engine{client: c}, nil
}

type engine struct {
	client *client.OptimizelyClient
}

func (e *engine) CreateUserContext(userID string, attributes map[string]any) decision.UserContext {
	if attributes == nil {
		attributes = map[string]any{}
	}
	return &userContext{uc: e.client.CreateUserContext(userID, attributes)}
}

func (e *engine) Config() decision.ConfigSummary {
	oc := e.client.GetOptimizelyConfig()
	if oc == nil {
		return decision.ConfigSummary{}
	}
	keys := make([]string, 0, len(oc.FeaturesMap))
	for key := range oc.FeaturesMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return decision.ConfigSummary{
		Revision:       oc.Revision,
		SDKKey:         oc.SdkKey,
		EnvironmentKey: oc.EnvironmentKey,
		FlagKeys:       keys,
	}
}

// Close flushes queued events into the dispatcher and stops the client.
func (e *engine) Close() {
	e.client.Close()
}

type userContext struct {
	uc client.OptimizelyUserContext
}

func (u *userContext) UserID() string {
	return u.uc.GetUserID()
}

func (u *userContext) Decide(flagKey string) decision.Decision {
	d := u.uc.Decide(flagKey, nil)
	return decision.Decision{
		FlagKey:      d.FlagKey,
		Enabled:      d.Enabled,
		UserID:       d.UserContext.GetUserID(),
		VariationKey: d.VariationKey,
		RuleKey:      d.RuleKey,
		Reasons:      d.Reasons,
	}
}

// eventBridge hands SDK log events to a decision.Dispatcher.
type eventBridge struct {
	ctx        context.Context
	dispatcher decision.Dispatcher
}

func newEventBridge(ctx context.Context, d decision.Dispatcher) *eventBridge {
	return &eventBridge{ctx: ctx, dispatcher: d}
}

// DispatchEvent never blocks on delivery. Without a dispatcher the event is dropped.
func (b *eventBridge) DispatchEvent(e event.LogEvent) (bool, error) {
	if b.dispatcher == nil {
		return true, nil
	}
	b.dispatcher.Dispatch(b.ctx, decision.Event{URL: e.EndPoint, Params: e.Event})
	return true, nil
}
