package meshcore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"meshgate/internal/models"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventCollector struct {
	mu     sync.Mutex
	events []*models.MeshEvent
}

func (c *eventCollector) handle(ctx context.Context, event *models.MeshEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) snapshot() []*models.MeshEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.MeshEvent, len(c.events))
	copy(out, c.events)
	return out
}

func newEventServer(t *testing.T, frames []string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.Write(r.Context(), websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		// Keep the connection open so the listener does not enter its
		// reconnect delay mid-test.
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitForEvents(t *testing.T, c *eventCollector, n int) []*models.MeshEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := c.snapshot(); len(events) >= n {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", n)
	return nil
}

func TestEventListener_DispatchesEvents(t *testing.T) {
	url := newEventServer(t, []string{
		`{"type": "message_received", "recipient": "sms-gateway", "sender": "alice", "text": "HELP"}`,
		`not valid json`,
		`{"type": "node_seen", "sender": "bob"}`,
	})

	collector := &eventCollector{}
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	listener := NewEventListener(url, collector.handle, 1, logger)
	require.NoError(t, listener.Start(context.Background()))
	defer listener.Stop()

	events := waitForEvents(t, collector, 2)

	assert.Equal(t, models.MeshEventMessageReceived, events[0].Type)
	assert.Equal(t, "alice", events[0].Sender)
	assert.Equal(t, "HELP", events[0].Text)
	assert.Equal(t, models.MeshEventNodeSeen, events[1].Type)
}

func TestEventListener_StartTwice(t *testing.T) {
	url := newEventServer(t, nil)

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	listener := NewEventListener(url, (&eventCollector{}).handle, 1, logger)
	require.NoError(t, listener.Start(context.Background()))
	defer listener.Stop()

	assert.Error(t, listener.Start(context.Background()))
}

func TestEventListener_StopIdempotent(t *testing.T) {
	url := newEventServer(t, nil)

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	listener := NewEventListener(url, (&eventCollector{}).handle, 1, logger)
	require.NoError(t, listener.Start(context.Background()))

	listener.Stop()
	listener.Stop()
}
