package events

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type pubSubClient interface {
	Ping(context.Context) error
	DomainPublisher() *gcppubsub.Publisher
	Close() error
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
	Stop()
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.pub.Publish(ctx, msg)
}

func (p gcpPublisher) ResumePublish(key string) {
	p.pub.ResumePublish(key)
}

func (p gcpPublisher) Stop() {
	p.pub.Stop()
}

// PubSubSink publishes to the single domain topic held by the client. The
// topic on each Message is informational only. Message.Key becomes the
// ordering key, so a failed publish pauses that key until it is resumed.
type PubSubSink struct {
	client    pubSubClient
	publisher publisher
}

func NewPubSubSink(client pubSubClient) *PubSubSink {
	sink := &PubSubSink{client: client}
	if pub := client.DomainPublisher(); pub != nil {
		sink.publisher = gcpPublisher{pub: pub}
	}
	return sink
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Publish(ctx context.Context, msg Message) error {
	if s.publisher == nil {
		return &PermanentError{Err: errors.New("pubsub publisher not configured")}
	}
	attrs := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	if msg.Key != "" {
		attrs["key"] = msg.Key
	}
	result := s.publisher.Publish(ctx, &gcppubsub.Message{Data: msg.Value, Attributes: attrs, OrderingKey: msg.Key})
	if result == nil {
		return &PermanentError{Err: errors.New("pubsub publisher returned no result")}
	}
	if _, err := result.Get(ctx); err != nil {
		if msg.Key != "" {
			s.publisher.ResumePublish(msg.Key)
		}
		switch status.Code(err) {
		case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied:
			return &PermanentError{Err: err}
		}
		return err
	}
	return nil
}

func (s *PubSubSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *PubSubSink) Close() error {
	if s.publisher != nil {
		s.publisher.Stop()
	}
	return s.client.Close()
}
