package service

import (
	"encoding/json"
	"net/http"
	"time"

	"mocktest_backend/internal/session"
	"mocktest_backend/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// feedClient streams one session's clock to one websocket.
type feedClient struct {
	conn      *websocket.Conn
	sessionID string
	events    <-chan session.Event
	done      chan struct{}
	limiter   *rate.Limiter
}

// readPump only keeps the connection alive; clients have nothing to say on
// this feed, so inbound frames are drained and rate limited.
func (c *feedClient) readPump(unsubscribe func()) {
	defer func() {
		close(c.done)
		unsubscribe()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("session feed closed unexpectedly", zap.String("session_id", c.sessionID), zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			logger.Log.Debug("session feed client too chatty", zap.String("session_id", c.sessionID))
		}
	}
}

func (c *feedClient) write(ev session.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *feedClient) writePump(first session.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(first); err != nil || first.Type == session.EventSubmitted {
		return
	}
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(ev); err != nil {
				return
			}
			if ev.Type == session.EventSubmitted {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// ServeSessionFeed upgrades the request and pushes the session's current
// clock followed by every tick until submission.
func ServeSessionFeed(ctrl *session.Controller, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("session feed upgrade failed", zap.String("session_id", ctrl.ID()), zap.Error(err))
		return
	}

	events, unsubscribe := ctrl.Subscribe()
	view := ctrl.View()
	first := session.Event{Type: session.EventTick, TimeLeft: view.TimeLeft}
	if out, ok := ctrl.Outcome(); ok {
		first = session.Event{Type: session.EventSubmitted, TimeLeft: view.TimeLeft, Reason: out.Reason}
	}

	client := &feedClient{
		conn:      conn,
		sessionID: ctrl.ID(),
		events:    events,
		done:      make(chan struct{}),
		limiter:   rate.NewLimiter(rate.Limit(5), 10),
	}
	go client.writePump(first)
	go client.readPump(unsubscribe)
}
