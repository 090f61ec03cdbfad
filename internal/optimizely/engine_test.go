package optimizely

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/optimizely/go-sdk/v2/pkg/logging"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/decision"
)

func loadDatafile(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("testdata/datafile.json")
	if err != nil {
		t.Fatalf("read datafile: %v", err)
	}
	return string(b)
}

func newTestEngine(t *testing.T, opts decision.Options) decision.Engine {
	t.Helper()
	e, err := NewFactory(zerolog.New(io.Discard), decision.LogLevelError).NewEngine(context.Background(), loadDatafile(t), opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []decision.Event
}

func (r *recordingDispatcher) Dispatch(_ context.Context, ev decision.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNewEngine_RejectsBadDatafiles(t *testing.T) {
	f := NewFactory(zerolog.New(io.Discard), decision.LogLevelError)

	for _, datafile := range []string{"", "not json", `{"version":"1"}`} {
		_, err := f.NewEngine(context.Background(), datafile, decision.Options{})
		if !errors.Is(err, decision.ErrEngine) {
			t.Errorf("NewEngine(%q): expected ErrEngine, got %v", datafile, err)
		}
	}
}

func TestDecide(t *testing.T) {
	e := newTestEngine(t, decision.Options{})
	defer e.Close()

	tests := []struct {
		flag    string
		enabled bool
	}{
		{flag: "discount", enabled: true},
		{flag: "banner", enabled: false},
		{flag: "does_not_exist", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			uc := e.CreateUserContext("visitor-1", map[string]any{})
			if uc.UserID() != "visitor-1" {
				t.Fatalf("UserID() = %q", uc.UserID())
			}

			d := uc.Decide(tt.flag)
			if d.FlagKey != tt.flag {
				t.Errorf("FlagKey = %q, want %q", d.FlagKey, tt.flag)
			}
			if d.Enabled != tt.enabled {
				t.Errorf("Enabled = %v, want %v (reasons: %v)", d.Enabled, tt.enabled, d.Reasons)
			}
			if d.UserID != "visitor-1" {
				t.Errorf("UserID = %q, want visitor-1", d.UserID)
			}
		})
	}
}

func TestConfig(t *testing.T) {
	e := newTestEngine(t, decision.Options{})
	defer e.Close()

	summary := e.Config()
	if summary.Revision != "42" {
		t.Errorf("Revision = %q, want 42", summary.Revision)
	}
	if len(summary.FlagKeys) != 2 || summary.FlagKeys[0] != "banner" || summary.FlagKeys[1] != "discount" {
		t.Errorf("FlagKeys = %v", summary.FlagKeys)
	}
}

func TestEvents_DroppedWithoutDispatcher(t *testing.T) {
	b := newEventBridge(context.Background(), nil)
	ok, err := b.DispatchEvent(eventForTest())
	if !ok || err != nil {
		t.Errorf("DispatchEvent() = %v, %v", ok, err)
	}
}

func TestEvents_FlushedToDispatcherOnClose(t *testing.T) {
	rec := &recordingDispatcher{}
	e := newTestEngine(t, decision.Options{Dispatcher: rec})

	e.CreateUserContext("visitor-2", nil).Decide("discount")
	e.Close()

	if rec.count() == 0 {
		t.Fatal("Expected the impression to reach the dispatcher when the engine closes")
	}
	if rec.events[0].URL == "" {
		t.Error("Expected event URL to be set")
	}
}

func TestLogConsumer_FiltersBelowLevel(t *testing.T) {
	var buf syncBuffer
	c := newLogConsumer(zerolog.New(&buf), logging.LogLevelError)

	c.Log(logging.LogLevelInfo, "noise", nil)
	c.Log(logging.LogLevelError, "broken datafile", map[string]interface{}{"sdkKey": "k"})

	out := buf.String()
	if want := "broken datafile"; !contains(out, want) {
		t.Errorf("Expected %q in log output, got %q", want, out)
	}
	if contains(out, "noise") {
		t.Errorf("info line should be filtered at error level: %q", out)
	}
}

func TestNewEngine_ConcurrentEnginesShareOneLogger(t *testing.T) {
	datafile := loadDatafile(t)
	levels := []decision.LogLevel{decision.LogLevelError, decision.LogLevelDebug, decision.LogLevelWarning}

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(level decision.LogLevel) {
			defer wg.Done()
			e, err := NewFactory(zerolog.New(io.Discard), level).NewEngine(context.Background(), datafile, decision.Options{})
			if err != nil {
				errs <- err
				return
			}
			defer e.Close()
			if d := e.CreateUserContext("user", nil).Decide("discount"); !d.Enabled {
				errs <- errors.New("discount should be enabled")
			}
		}(levels[i%len(levels)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestLogConsumer_LevelChangeWhileLogging(t *testing.T) {
	var buf syncBuffer
	c := newLogConsumer(zerolog.New(&buf), logging.LogLevelError)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Log(logging.LogLevelError, "decide", nil)
			}
		}()
	}
	for j := 0; j < 100; j++ {
		c.SetLogLevel(logging.LogLevelInfo)
		c.SetLogLevel(logging.LogLevelError)
	}
	wg.Wait()

	if !contains(buf.String(), "decide") {
		t.Error("Expected error lines to pass at every level")
	}
}
