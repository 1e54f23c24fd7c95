package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/make-42/tasogare/internal/metrics"
)

const writeWait = 10 * time.Second

// client manages a single websocket connection's write operations. Only the
// handler goroutine writes; readLoop only reads.
type client struct {
	conn   *websocket.Conn
	ip     string
	logger *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON marshals v and writes it as one text message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.messagesSent++
	c.bytesSent += int64(len(data))
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(len(data)))
	return nil
}

// sendPing writes a websocket ping control frame.
func (c *client) sendPing() error {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// readLoop drains client messages so control frames (pong, close) are
// processed, and calls cancel once the connection is gone.
func (c *client) readLoop(cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
