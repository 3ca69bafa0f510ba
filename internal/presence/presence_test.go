package presence

import (
	"sync"
	"testing"
	"time"

	"session-tracker/internal/models"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeChannel struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (c *fakeChannel) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.msgs = append(c.msgs, msg)
	return true
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

type recordingPublisher struct {
	events []models.SessionEvent
}

func (p *recordingPublisher) Publish(ev models.SessionEvent) {
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []models.EventType {
	out := make([]models.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func demoParams(maxUsers int) CreateSessionParams {
	return CreateSessionParams{
		Name:        "demo",
		Description: "d",
		Creator:     "alice",
		MaxUsers:    maxUsers,
		IsPublic:    true,
		ContentRef:  "ref",
		TTL:         3600 * time.Second,
	}
}

// newTestEngine returns an engine with connections c1..cN registered.
func newTestEngine(t *testing.T, conns int) (*Engine, *recordingPublisher, map[string]*fakeChannel) {
	t.Helper()
	pub := &recordingPublisher{}
	e := NewEngine(DefaultConfig(), pub)
	chans := make(map[string]*fakeChannel)
	for i := 1; i <= conns; i++ {
		id := "c" + string(rune('0'+i))
		ch := &fakeChannel{}
		require.NoError(t, e.Connect(id, ch))
		chans[id] = ch
	}
	return e, pub, chans
}
