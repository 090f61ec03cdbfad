package optimizely

import (
	"bytes"
	"strings"
	"sync"

	"github.com/optimizely/go-sdk/v2/pkg/event"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func eventForTest() event.LogEvent {
	return event.LogEvent{EndPoint: "https://logx.optimizely.com/v1/events", Event: event.Batch{AccountID: "200"}}
}
