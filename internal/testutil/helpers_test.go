package testutil

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/TimurManjosov/flagedge/internal/decision"
)

func TestFakeFactory_EmptyDatafileFails(t *testing.T) {
	f := &FakeFactory{}
	_, err := f.NewEngine(context.Background(), "", decision.Options{})
	if !errors.Is(err, decision.ErrEngine) {
		t.Fatalf("Expected ErrEngine, got %v", err)
	}
}

func TestFakeEngine_Decide(t *testing.T) {
	f := &FakeFactory{Flags: map[string]bool{"on": true, "off": false}}
	e, err := f.NewEngine(context.Background(), "{}", decision.Options{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	uc := e.CreateUserContext("u-1", nil)

	if d := uc.Decide("on"); !d.Enabled || d.UserID != "u-1" || d.FlagKey != "on" {
		t.Errorf("Unexpected decision for 'on': %+v", d)
	}
	if d := uc.Decide("off"); d.Enabled {
		t.Errorf("Expected 'off' to be disabled: %+v", d)
	}
	if d := uc.Decide("missing"); d.Enabled || len(d.Reasons) == 0 {
		t.Errorf("Expected unknown flag to be disabled with a reason: %+v", d)
	}
}

func TestHTTPRequest_Do(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusAccepted)
	})

	rr := (&HTTPRequest{Method: http.MethodGet, Path: "/", Headers: map[string]string{"X-Test": "1"}}).Do(t, handler)
	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", rr.Code)
	}
	if rr.Header().Get("X-Echo") != "1" {
		t.Errorf("Expected header to be forwarded")
	}
}
