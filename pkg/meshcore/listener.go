package meshcore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"meshgate/internal/constants"
	"meshgate/internal/models"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// EventHandler processes one mesh event. Errors are logged by the
// listener; they never stop the stream.
type EventHandler func(ctx context.Context, event *models.MeshEvent) error

// EventListener keeps a websocket subscription to the MeshCore
// integration's event stream and dispatches events to a handler,
// reconnecting with a fixed delay when the connection drops.
type EventListener struct {
	eventsURL      string
	handler        EventHandler
	reconnectDelay time.Duration
	logger         *logrus.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewEventListener(eventsURL string, handler EventHandler, reconnectDelaySec int, logger *logrus.Logger) *EventListener {
	if reconnectDelaySec <= 0 {
		reconnectDelaySec = constants.DefaultMeshReconnectDelaySec
	}
	return &EventListener{
		eventsURL:      eventsURL,
		handler:        handler,
		reconnectDelay: time.Duration(reconnectDelaySec) * time.Second,
		logger:         logger,
	}
}

// Start begins the background listening process.
func (l *EventListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("mesh event listener is already running")
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running = true

	l.wg.Add(1)
	go l.listenLoop()

	l.logger.WithField("url", l.eventsURL).Info("Mesh event listener started")
	return nil
}

// Stop gracefully stops the listener.
func (l *EventListener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}

	l.cancel()
	l.wg.Wait()
	l.running = false

	l.logger.Info("Mesh event listener stopped")
}

func (l *EventListener) listenLoop() {
	defer l.wg.Done()

	for {
		if l.ctx.Err() != nil {
			return
		}

		if err := l.consumeStream(); err != nil && l.ctx.Err() == nil {
			l.logger.WithError(err).Warn("Mesh event stream disconnected, reconnecting")
		}

		select {
		case <-l.ctx.Done():
			return
		case <-time.After(l.reconnectDelay):
		}
	}
}

// consumeStream holds one websocket connection open and dispatches
// events until the connection fails or the listener is stopped.
func (l *EventListener) consumeStream() error {
	conn, _, err := websocket.Dial(l.ctx, l.eventsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial mesh event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	l.logger.Debug("Connected to mesh event stream")

	for {
		msgType, data, err := conn.Read(l.ctx)
		if err != nil {
			return fmt.Errorf("failed to read mesh event: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var event models.MeshEvent
		if err := json.Unmarshal(data, &event); err != nil {
			l.logger.WithError(err).Warn("Failed to decode mesh event, skipping")
			continue
		}

		if err := l.handler(l.ctx, &event); err != nil {
			l.logger.WithError(err).WithField("event_type", event.Type).Error("Failed to process mesh event")
		}
	}
}
