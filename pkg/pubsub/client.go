// Package pubsub connects to the Google Pub/Sub topic that carries domain
// events when FARMLINK_EVENTS_BACKEND=pubsub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcp "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

var errClosed = errors.New("pubsub client not initialized")

// Client owns one Pub/Sub connection and the publisher for the domain topic.
type Client struct {
	conn      *gcp.Client
	topic     string
	publisher *gcp.Publisher
}

// NewClient dials Pub/Sub and fails fast when the topic does not exist.
func NewClient(ctx context.Context, cloud config.GCPConfig, events config.EventsConfig, logg *logger.Logger) (*Client, error) {
	topic, err := topicResourceName(cloud.ProjectID, events.PubSubTopic)
	if err != nil {
		return nil, err
	}
	conn, err := gcp.NewClient(ctx, strings.TrimSpace(cloud.ProjectID), credentials(cloud)...)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}
	c := &Client{conn: conn, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub.ready")
	}
	return c, nil
}

// credentials prefers inline JSON over a key file. With neither, the client
// falls back to application default credentials.
func credentials(cloud config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(cloud.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(cloud.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// DomainPublisher returns the shared publisher with message ordering on, so
// events with the same ordering key arrive in publish order.
func (c *Client) DomainPublisher() *gcp.Publisher {
	if c == nil || c.conn == nil {
		return nil
	}
	if c.publisher == nil {
		c.publisher = c.conn.Publisher(c.topic)
		c.publisher.EnableMessageOrdering = true
	}
	return c.publisher
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errClosed
	}
	_, err := c.conn.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub topic %s does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("look up pubsub topic %s: %w", c.topic, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// topicResourceName accepts a short topic id or a full
// projects/<p>/topics/<t> name.
func topicResourceName(projectID, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	projectID = strings.TrimSpace(projectID)
	switch {
	case topic == "":
		return "", errors.New("pubsub topic name is required")
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic, nil
	case projectID == "":
		return "", errors.New("gcp project id is required")
	}
	return "projects/" + projectID + "/topics/" + topic, nil
}
