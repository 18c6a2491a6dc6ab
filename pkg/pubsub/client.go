package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raritone/session-backend/pkg/config"
	"github.com/raritone/session-backend/pkg/logger"
)

// MergeEvent is the downstream notification emitted after a reconciliation
// attempt. Consumers (email, analytics) subscribe to the merge events topic.
type MergeEvent struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Outcome    string    `json:"outcome"`
	LineCount  int       `json:"line_count"`
	CappedKeys []string  `json:"capped_keys,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Client publishes merge outcome events to the configured topic.
type Client struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	projectID string
}

var errProjectIDRequired = errors.New("gcp project id is required")

// NewClient creates a Pub/Sub v2 client bound to the merge events topic.
// Returns (nil, nil) when no topic is configured so callers can treat
// publishing as disabled.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	topic := strings.TrimSpace(cfg.MergeEventsTopic)
	if topic == "" {
		return nil, nil
	}
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
	}

	if err := c.ensureTopicExists(ctx, topic); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	c.publisher = psClient.Publisher(c.topicResourceName(topic))

	if logg != nil {
		logg.Info(ctx, "pubsub merge events publisher initialized")
	}

	return c, nil
}

func (c *Client) ensureTopicExists(ctx context.Context, name string) error {
	fullName := c.topicResourceName(name)
	_, err := c.client.TopicAdminClient.GetTopic(
		ctx,
		&pubsubpb.GetTopicRequest{Topic: fullName},
	)
	if err != nil {
		// v2 uses gRPC errors; NotFound means the topic doesn't exist.
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", name)
		}
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
	return nil
}

// PublishMergeEvent publishes a merge outcome to the topic and waits for the
// server ack. A nil client is a no-op.
func (c *Client) PublishMergeEvent(ctx context.Context, event MergeEvent) error {
	if c == nil || c.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling merge event: %w", err)
	}

	result := c.publisher.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": "cart.merge",
			"outcome":    event.Outcome,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing merge event: %w", err)
	}
	return nil
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.projectID, n)
}
