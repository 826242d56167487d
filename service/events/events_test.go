package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentchat/module/rental/model"
)

func sampleEvent() MessageRelayed {
	chat := &model.Chat{ID: "c1", PropertyID: "p1", TenantID: "t1", OwnerID: "o1"}
	m := &model.Message{ID: "m1", ChatID: "c1", SenderID: "t1", Content: "hi", Type: "text",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	return NewMessageRelayed(chat, m)
}

type fakeConn struct {
	sent   []*nats.Msg
	err    error
	closed bool
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeConn) Drain() error {
	f.closed = true
	return nil
}

func TestNatsPublish(t *testing.T) {
	conn := &fakeConn{}
	p := newNatsPublisher(conn, "rental.chat.message")

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, conn.sent, 1)
	msg := conn.sent[0]
	assert.Equal(t, "rental.chat.message", msg.Subject)
	assert.Equal(t, "c1", msg.Header.Get(HeaderChatID))
	assert.Equal(t, "t1", msg.Header.Get(HeaderSenderID))

	var got MessageRelayed
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "o1", got.OwnerID)
	assert.Equal(t, "hi", got.Message.Content)

	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
}

func TestNatsPublishError(t *testing.T) {
	p := newNatsPublisher(&fakeConn{err: nats.ErrConnectionClosed}, "s")
	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestNatsConfigNorm(t *testing.T) {
	c := NatsConfig{}
	assert.Error(t, c.norm())

	c = NatsConfig{Servers: []string{"nats://127.0.0.1:4222"}}
	require.NoError(t, c.norm())
	assert.Equal(t, "rental.chat.message", c.Subject)
	assert.Equal(t, 3*time.Second, c.Timeout)
}

func TestKafkaPublish(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got MessageRelayed
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.ChatID != "c1" {
			return errors.New("unexpected chat " + got.ChatID)
		}
		return nil
	})
	prod.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisher(prod, "rental.chat.message")
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.ErrorIs(t, p.Publish(context.Background(), sampleEvent()), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestKafkaBaseConfig(t *testing.T) {
	cfg := KafkaConfig{Compression: "LZ4"}.BaseConfig()
	assert.Equal(t, sarama.CompressionLZ4, cfg.Producer.Compression)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.Equal(t, 3, cfg.Producer.Retry.Max)
	assert.NoError(t, cfg.Validate())
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
