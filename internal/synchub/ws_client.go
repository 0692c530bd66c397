package synchub

import (
	"encoding/json"
	"time"

	"dormpool/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// controlFrame is what clients send upstream: topic subscription changes.
// Everything else (messages, lifecycle commands) goes over REST.
type controlFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// WebSocketClient implements the synchub.Client interface over a
// gorilla/websocket connection.
type WebSocketClient struct {
	UserID        string
	InitialTopics []string
	Conn          *websocket.Conn
	Hub           *ManagerService
	Send          chan models.ChangeEvent
}

func NewWebSocketClient(userID string, topics []string, conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		UserID:        userID,
		InitialTopics: topics,
		Conn:          conn,
		Hub:           hub,
		Send:          make(chan models.ChangeEvent, 32),
	}
}

func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) Topics() []string                          { return c.InitialTopics }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChangeEvent { return c.Send }

// Run starts the websocket pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops the writePump.
func (c *WebSocketClient) Close() {
	close(c.Send)
	// readPump stops on its own once Conn.Close() runs in its defer
}

// readPump consumes control frames until the connection drops, then
// unregisters the client from the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("websocket read error")
			}
			break
		}

		var frame controlFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			logrus.WithError(err).WithField("user", c.UserID).Warn("dropping malformed control frame")
			continue
		}

		switch frame.Action {
		case "subscribe":
			c.Hub.SubscribeCh <- Subscription{Client: c, Topic: frame.Topic}
		case "unsubscribe":
			c.Hub.UnsubscribeCh <- Subscription{Client: c, Topic: frame.Topic}
		default:
			logrus.WithField("action", frame.Action).Warn("unknown control action")
		}
	}
}

// writePump drains the Send channel into the websocket and keeps the
// connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// channel closed by the hub, close the WS connection
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				logrus.WithError(err).WithField("user", c.UserID).Warn("failed to encode change event")
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// drain whatever is already queued into the same frame
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next := <-c.Send
				extra, _ := json.Marshal(next)
				w.Write([]byte("\n"))
				w.Write(extra)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
