package chat

import "context"

// Conn bundles what a handler needs about the connection it serves.
type Conn struct {
	Session *Session
	Socket  Socket
	Remote  string
}

type Handler interface {
	Type() FrameType
	Handle(ctx context.Context, c *Conn, f Inbound) error
}
