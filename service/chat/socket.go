package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rentchat/logger"
	"rentchat/tools/safe"
)

type SocketConfig struct {
	SendQueue    int           // frames buffered per connection
	ReadLimit    int64         // max inbound frame size in bytes
	PingInterval time.Duration // keep-alive ping period
	WriteWait    time.Duration
}

func (c *SocketConfig) norm() {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
}

// wsSocket owns one gorilla connection. All writes happen on the writer
// goroutine; the send channel is never closed so Send cannot panic.
type wsSocket struct {
	id   string
	conn *websocket.Conn
	cfg  SocketConfig

	send      chan []byte
	quit      chan struct{}
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
}

func newWSSocket(id string, conn *websocket.Conn, cfg SocketConfig) *wsSocket {
	cfg.norm()
	s := &wsSocket{
		id:   id,
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendQueue),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	conn.SetReadLimit(cfg.ReadLimit)
	s.extendRead()
	conn.SetPongHandler(func(string) error {
		s.extendRead()
		return nil
	})
	safe.Go("ws-writer", s.writeLoop, func(error) { s.Close() })
	return s
}

func (s *wsSocket) ID() string { return s.id }

func (s *wsSocket) IsOpen() bool { return !s.closing.Load() }

// Send queues payload. A full queue means the peer is not keeping up; the
// socket is closed rather than blocking the room.
func (s *wsSocket) Send(payload []byte) bool {
	if s.closing.Load() {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		logger.Warn("send queue full, closing", zap.String("conn", s.id))
		s.Close()
		return false
	}
}

// Close flushes queued frames, sends a close frame and closes the connection.
func (s *wsSocket) Close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.quit)
	})
}

// Done is closed once the underlying connection is closed.
func (s *wsSocket) Done() <-chan struct{} { return s.done }

// Read returns the next data frame, skipping anything that is not text or binary.
func (s *wsSocket) Read() ([]byte, error) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		s.extendRead()
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsSocket) extendRead() {
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
}

func (s *wsSocket) writeLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.closing.Store(true)
		_ = s.conn.Close()
		close(s.done)
	}()

	for {
		select {
		case payload := <-s.send:
			if err := s.write(websocket.TextMessage, payload); err != nil {
				logger.Debug("ws write failed", zap.String("conn", s.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				logger.Debug("ws ping failed", zap.String("conn", s.id), zap.Error(err))
				return
			}
		case <-s.quit:
			s.flush()
			return
		}
	}
}

func (s *wsSocket) flush() {
	for {
		select {
		case payload := <-s.send:
			if err := s.write(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *wsSocket) write(mt int, payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return s.conn.WriteMessage(mt, payload)
}
