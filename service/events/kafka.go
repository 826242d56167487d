package events

import (
	"context"
	"strings"
	"time"

	"github.com/Shopify/sarama"

	"rentchat/tools/errs"
)

type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Retries     int
	Compression string // none/snappy/lz4/zstd
	Version     sarama.KafkaVersion
}

// BaseConfig returns the producer config shared by every Kafka sink.
// Messages are keyed by chat id, so the hash partitioner keeps a chat on one partition.
func (c KafkaConfig) BaseConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = c.Version
	if cfg.Version == (sarama.KafkaVersion{}) {
		cfg.Version = sarama.V2_1_0_0
	}
	cfg.ClientID = "rentchat"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.Retries
	if cfg.Producer.Retry.Max <= 0 {
		cfg.Producer.Retry.Max = 3
	}
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

type KafkaPublisher struct {
	prod  sarama.SyncProducer
	topic string
}

func DialKafka(c KafkaConfig) (*KafkaPublisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errs.New("kafka brokers missing")
	}
	if c.Topic == "" {
		c.Topic = "rental.chat.message"
	}
	prod, err := sarama.NewSyncProducer(c.Brokers, c.BaseConfig())
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka producer", "brokers", strings.Join(c.Brokers, ","))
	}
	return NewKafkaPublisher(prod, c.Topic), nil
}

func NewKafkaPublisher(prod sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{prod: prod, topic: topic}
}

func (p *KafkaPublisher) Publish(_ context.Context, e MessageRelayed) error {
	data, err := e.encode()
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.ChatID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderChatID), Value: []byte(e.ChatID)},
			{Key: []byte(HeaderSenderID), Value: []byte(e.Message.SenderID)},
		},
	}
	if _, _, err := p.prod.SendMessage(msg); err != nil {
		return errs.WrapMsg(err, "kafka publish", "topic", p.topic, "chatId", e.ChatID)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.prod.Close()
}
