// Package websocket pushes server-side updates to browser pages. Clients
// subscribe to one topic each; the last message of every topic is retained
// and replayed to late subscribers.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Pages are served by this process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is a payload for every client of a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Client is one browser connection.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
	sess  Session
}

// Session hooks let a page talk back over its connection.
type Session struct {
	// OnText receives text frames sent by the browser.
	OnText func(data []byte)
	// OnClose runs once the connection is gone.
	OnClose func()
}

// Hub maintains the set of active clients and routes messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	lg         *zap.SugaredLogger

	mu       sync.RWMutex
	retained map[string][]byte
	topics   map[string]int
	count    int
}

// NewHub creates a Hub. Call Run to start routing.
func NewHub(lg *zap.SugaredLogger) *Hub {
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		retained:   make(map[string][]byte),
		topics:     make(map[string]int),
		lg:         lg,
	}
}

// Run routes registrations and messages until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.subscribed(client.topic, 1)
			if last, ok := h.Retained(client.topic); ok {
				h.deliver(client, last)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.subscribed(client.topic, -1)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.topic == msg.Topic {
					h.deliver(client, msg.Payload)
				}
			}
		}
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// Slow client: drop it rather than block every topic.
		delete(h.clients, client)
		close(client.send)
		h.subscribed(client.topic, -1)
		h.lg.Debugw("dropped slow websocket client", "topic", client.topic)
	}
}

func (h *Hub) subscribed(topic string, delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count += delta
	if n := h.topics[topic] + delta; n > 0 {
		h.topics[topic] = n
	} else {
		delete(h.topics, topic)
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Subscribers is the number of clients connected to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.topics[topic]
}

// Publish retains payload as the latest message of topic and sends it to
// the topic's clients.
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.Lock()
	h.retained[topic] = payload
	h.mu.Unlock()
	h.broadcast <- Message{Topic: topic, Payload: payload}
}

// PublishJSON marshals v and publishes it.
func (h *Hub) PublishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.lg.Errorw("error marshalling websocket message", "topic", topic, "error", err)
		return
	}
	h.Publish(topic, payload)
}

// Retained returns the latest message of topic.
func (h *Hub) Retained(topic string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.retained[topic]
	return p, ok
}

// Forget drops the retained message of topic.
func (h *Hub) Forget(topic string) {
	h.mu.Lock()
	delete(h.retained, topic)
	h.mu.Unlock()
}

// ServeWs upgrades the request and subscribes the connection to topic.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, topic string) {
	h.ServeSession(w, r, topic, Session{})
}

// ServeSession is ServeWs for interactive pages. Replies are published to
// a topic private to the connection.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, topic string, sess Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warnw("websocket upgrade failed", "error", err)
		if sess.OnClose != nil {
			sess.OnClose()
		}
		return
	}
	client := &Client{hub: h, conn: conn, topic: topic, send: make(chan []byte, sendBuffer), sess: sess}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump forwards browser frames and detects closed connections.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		if c.sess.OnClose != nil {
			c.sess.OnClose()
		}
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.lg.Debugw("websocket closed", "topic", c.topic, "error", err)
			}
			return
		}
		if kind == websocket.TextMessage && c.sess.OnText != nil {
			c.sess.OnText(data)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
