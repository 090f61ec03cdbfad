// Package events delivers decision engine events to the telemetry backend.
//
// Dispatch is fire-and-forget: the POST is handed to a background scheduler and the caller
// continues immediately. Delivery is attempted once; failures are logged and counted.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/backend"
	"github.com/TimurManjosov/flagedge/internal/background"
	"github.com/TimurManjosov/flagedge/internal/decision"
	"github.com/TimurManjosov/flagedge/internal/telemetry"
)

// maxResponseBodySize limits how much of a failed response body is logged
const maxResponseBodySize = 1024

// Doer sends a request through a named backend.
type Doer interface {
	Do(backendName string, req *http.Request) (*http.Response, error)
}

// Dispatcher POSTs events as JSON through the LogX backend.
type Dispatcher struct {
	doer      Doer
	scheduler background.Scheduler
}

// NewDispatcher returns a dispatcher that runs deliveries on scheduler.
func NewDispatcher(doer Doer, scheduler background.Scheduler) *Dispatcher {
	return &Dispatcher{doer: doer, scheduler: scheduler}
}

// Dispatch queues ev for delivery and returns without waiting for it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev decision.Event) {
	log := zerolog.Ctx(ctx)

	payload, err := json.Marshal(ev.Params)
	if err != nil {
		telemetry.ObserveEvent(telemetry.ResultError)
		log.Error().Err(err).Str("url", ev.URL).Msg("event params are not JSON serializable")
		return
	}

	d.scheduler.Go(ctx, "event-dispatch", func(ctx context.Context) {
		d.deliver(ctx, ev.URL, payload)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, url string, payload []byte) {
	log := zerolog.Ctx(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		telemetry.ObserveEvent(telemetry.ResultError)
		log.Error().Err(err).Str("url", url).Msg("failed to create event request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.doer.Do(backend.LogX, req)
	if err != nil {
		telemetry.ObserveEvent(telemetry.ResultError)
		log.Warn().Err(err).Str("url", url).Msg("event delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		telemetry.ObserveEvent(telemetry.ResultError)
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Str("body", string(body)).Msg("event delivery rejected")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	telemetry.ObserveEvent(telemetry.ResultOK)
	log.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("event delivered")
}
