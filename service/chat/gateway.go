// Package chat is the WebSocket gateway: it drives one Session per socket,
// keeps the RoomRegistry and relays messages between the participants of a chat.
package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rentchat/data/store"
	"rentchat/logger"
	"rentchat/module/rental/model"
	"rentchat/service/events"
	"rentchat/tools/errs"
	"rentchat/tools/security"
)

type Config struct {
	Store    store.Store
	Verifier *security.Verifier
	Events   events.Publisher // nil publishes nothing
	Presence PresenceHook     // optional
	Registry prometheus.Registerer

	Socket       SocketConfig
	FrameTimeout time.Duration // per-frame budget for store and verifier calls
	CheckOrigin  func(r *http.Request) bool
}

type Gateway struct {
	store    store.Store
	verifier *security.Verifier
	events   events.Publisher
	rooms    *RoomRegistry
	metrics  *Metrics
	disp     *Dispatcher

	upgrader     websocket.Upgrader
	socketCfg    SocketConfig
	frameTimeout time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[string]*wsSocket
	closed bool
	wg     sync.WaitGroup
}

func NewGateway(c Config) *Gateway {
	if c.Events == nil {
		c.Events = events.Noop{}
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = 10 * time.Second
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	c.Socket.norm()

	rooms := NewRoomRegistry(c.Presence)
	base, cancel := context.WithCancel(context.Background())
	return &Gateway{
		store:    c.Store,
		verifier: c.Verifier,
		events:   c.Events,
		rooms:    rooms,
		metrics:  NewMetrics(c.Registry, rooms),
		disp:     NewDispatcher(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     c.CheckOrigin,
		},
		socketCfg:    c.Socket,
		frameTimeout: c.FrameTimeout,
		base:         base,
		cancel:       cancel,
		conns:        make(map[string]*wsSocket),
	}
}

func (g *Gateway) Store() store.Store           { return g.store }
func (g *Gateway) Verifier() *security.Verifier { return g.verifier }
func (g *Gateway) Rooms() *RoomRegistry         { return g.rooms }
func (g *Gateway) Metrics() *Metrics            { return g.metrics }
func (g *Gateway) Disp() *Dispatcher            { return g.disp }

// ResolveTenantChat returns the chat of (propertyID, tenantID), creating it
// with ownerID when it does not exist yet. Creation is an upsert, so
// concurrent callers converge on one chat.
func (g *Gateway) ResolveTenantChat(ctx context.Context, propertyID, tenantID, ownerID string) (*model.Chat, error) {
	chat, err := g.store.FindChatByPropertyAndTenant(ctx, propertyID, tenantID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	return g.store.CreateChat(ctx, model.NewChat{PropertyID: propertyID, TenantID: tenantID, OwnerID: ownerID})
}

// Publish hands the relayed message to the event sink. Failures are logged only.
func (g *Gateway) Publish(ctx context.Context, chat *model.Chat, m *model.Message) {
	if err := g.events.Publish(ctx, events.NewMessageRelayed(chat, m)); err != nil {
		logger.Warn("publish relayed message failed", zap.String("chat", chat.ID), zap.String("message", m.ID), zap.Error(err))
	}
}

func (g *Gateway) track(s *wsSocket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.conns[s.ID()] = s
	g.wg.Add(1)
	return true
}

func (g *Gateway) untrack(s *wsSocket) {
	g.mu.Lock()
	if _, ok := g.conns[s.ID()]; ok {
		delete(g.conns, s.ID())
		g.wg.Done()
	}
	g.mu.Unlock()
}

// ConnCount is the number of open connections.
func (g *Gateway) ConnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Close stops accepting connections, closes every socket and waits for their
// read loops to finish or ctx to expire.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	socks := make([]*wsSocket, 0, len(g.conns))
	for _, s := range g.conns {
		socks = append(socks, s)
	}
	g.mu.Unlock()

	g.cancel()
	for _, s := range socks {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
