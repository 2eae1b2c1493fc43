package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (*kafka.Conn, error)

// KafkaSink writes messages with the aggregate id as key so every event of
// one order or wallet lands on the same partition in order.
type KafkaSink struct {
	writer  kafkaWriter
	brokers []string
	dial    dialFunc
}

func NewKafkaSink(brokers []string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaSink{writer: w, brokers: brokers, dial: kafka.DialContext}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return &PermanentError{Err: errors.New("kafka topic is required")}
	}
	headers := make([]kafka.Header, 0, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	err := s.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, kafka.MessageSizeTooLarge) || errors.Is(err, kafka.InvalidMessage) {
		return &PermanentError{Err: err}
	}
	return err
}

// Ping dials the first reachable broker.
func (s *KafkaSink) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range s.brokers {
		conn, err := s.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
