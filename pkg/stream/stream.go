// Package stream implements the live event channel over a websocket
// connection to the webchat backend.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adambraimbridge/webchat/pkg/ingest"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// inboundBuffer bounds the event queue between the read pump and
	// the consumer.
	inboundBuffer = 256
)

// Dialer opens websocket channels. It implements ingest.ChannelDialer.
type Dialer struct {
	// APIKey is sent as X-API-Key on the upgrade request when set.
	APIKey string
	// HandshakeTimeout overrides the default 10s when set.
	HandshakeTimeout time.Duration
}

var _ ingest.ChannelDialer = (*Dialer)(nil)

// Dial connects to the channel URL and starts the pumps. The returned
// channel delivers events until the connection drops or Stop is called.
func (d *Dialer) Dial(ctx context.Context, channelRef string) (ingest.Channel, error) {
	wd := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if wd.HandshakeTimeout == 0 {
		wd.HandshakeTimeout = 10 * time.Second
	}
	var hdr http.Header
	if d.APIKey != "" {
		hdr = http.Header{"X-API-Key": []string{d.APIKey}}
	}
	conn, _, err := wd.DialContext(ctx, channelRef, hdr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to channel %s: %w", channelRef, err)
	}
	ch := &Channel{
		conn:      conn,
		events:    make(chan models.Event, inboundBuffer),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go ch.readPump()
	go ch.pingLoop()
	return ch, nil
}

// Channel is a live websocket event feed.
type Channel struct {
	conn      *websocket.Conn
	events    chan models.Event
	connected chan struct{}
	done      chan struct{}

	connectOnce sync.Once
	stopOnce    sync.Once
}

// Events returns the inbound event queue. It is closed when the
// connection ends.
func (c *Channel) Events() <-chan models.Event { return c.events }

// Connected is closed once the first frame arrives from the server.
func (c *Channel) Connected() <-chan struct{} { return c.connected }

// Stop closes the connection. Safe to call more than once.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.conn.Close()
	})
}

func (c *Channel) readPump() {
	defer func() {
		c.Stop()
		close(c.events)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-c.done:
				default:
					logger.Warn("channel_read_failed", "error", err.Error())
				}
			}
			return
		}
		c.connectOnce.Do(func() { close(c.connected) })

		var evt models.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			logger.Warn("channel_frame_invalid", "error", err.Error())
			continue
		}
		if evt.Kind == "" {
			continue
		}
		select {
		case c.events <- evt:
		case <-c.done:
			return
		}
	}
}

func (c *Channel) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
