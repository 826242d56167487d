package events

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"rentchat/tools/errs"
)

type NatsConfig struct {
	Servers       []string
	Name          string
	Subject       string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *NatsConfig) norm() error {
	if len(c.Servers) == 0 {
		return errs.New("nats servers missing")
	}
	if c.Subject == "" {
		c.Subject = "rental.chat.message"
	}
	if c.Name == "" {
		c.Name = "rentchat"
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	return nil
}

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

type NatsPublisher struct {
	nc      natsConn
	subject string
}

// DialNats connects with unlimited reconnects; publishes while disconnected are
// buffered by the client.
func DialNats(c NatsConfig) (*NatsPublisher, error) {
	if err := c.norm(); err != nil {
		return nil, err
	}
	opts := []nats.Option{
		nats.Name(c.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(c.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(c.Timeout),
	}
	nc, err := nats.Connect(strings.Join(c.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "connect nats", "servers", strings.Join(c.Servers, ","))
	}
	return newNatsPublisher(nc, c.Subject), nil
}

func newNatsPublisher(nc natsConn, subject string) *NatsPublisher {
	return &NatsPublisher{nc: nc, subject: subject}
}

func (p *NatsPublisher) Publish(_ context.Context, e MessageRelayed) error {
	data, err := e.encode()
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(HeaderChatID, e.ChatID)
	msg.Header.Set(HeaderSenderID, e.Message.SenderID)

	if err := p.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", p.subject, "chatId", e.ChatID)
	}
	return nil
}

func (p *NatsPublisher) Close() error {
	return p.nc.Drain()
}
