package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/droidstream/signal/pkg/network"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 10 * 1024
	readWait       = 120 * time.Second
	writeWait      = 10 * time.Second
	sendBacklog    = 64
)

type WSMessageHandler func(message []byte, err error)

// WS wraps a single websocket connection with serialized reads and writes.
// The reader pump starts on Listen, the writer pump right away, so early
// messages (auth errors) can be sent before any handler is attached.
type WS struct {
	id   network.Uid
	conn deadlinedConn
	send chan []byte

	OnMessage WSMessageHandler

	// Done is closed exactly once when the connection is torn down.
	Done chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer upgrades an HTTP request to a websocket connection.
func NewServer(w http.ResponseWriter, r *http.Request) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn), nil
}

func newSocket(conn *websocket.Conn) *WS {
	ws := &WS{
		id:   network.NewUid(),
		conn: deadlinedConn{sock: conn, wt: writeWait},
		send: make(chan []byte, sendBacklog),
		Done: make(chan struct{}),
	}
	go ws.writer()
	return ws
}

func (ws *WS) Id() network.Uid { return ws.id }

// Listen starts the reader pump. OnMessage must be set before calling it.
func (ws *WS) Listen() { go ws.reader() }

// reader pumps messages from the websocket connection to the OnMessage
// callback. Serializes all websocket reads.
func (ws *WS) reader() {
	defer ws.Close()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			return
		}
		_ = ws.conn.refresh(readWait)
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes; sends the close frame after drain.
func (ws *WS) writer() {
	for message := range ws.send {
		if err := ws.conn.write(websocket.TextMessage, message); err != nil {
			break
		}
	}
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
	_ = ws.conn.close()
}

// Write queues data for sending. Messages to a closed or badly
// backlogged connection are dropped.
func (ws *WS) Write(data []byte) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return
	}
	select {
	case ws.send <- data:
	default:
	}
}

// Close tears the connection down; safe to call multiple times.
func (ws *WS) Close() {
	ws.once.Do(func() {
		ws.mu.Lock()
		ws.closed = true
		ws.mu.Unlock()
		close(ws.send)
		close(ws.Done)
	})
}
