// Package pubsub connects to the Google Pub/Sub subscription that carries
// backend row changes when LISTEN/NOTIFY is not reachable.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/logger"
)

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errSubscriptionRequired = errors.New("pubsub changes subscription is required")
	errNotInitialized       = errors.New("pubsub client not initialized")
)

type Client struct {
	client  *pubsub.Client
	changes string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and fails fast when the changes subscription is
// missing, so a misconfigured feed never starts silently.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	changes := subscriptionResourceName(project, cfg.ChangesSubscription)
	if changes == "" {
		return nil, errSubscriptionRequired
	}

	raw, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{client: raw, changes: changes, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "subscription", changes), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	creds := strings.TrimSpace(gcp.CredentialsJSON)
	if creds == "" {
		// application default credentials, or the emulator via PUBSUB_EMULATOR_HOST
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
}

// ChangesSubscription returns the row-change subscriber with the configured
// flow control applied.
func (c *Client) ChangesSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.client.Subscriber(c.changes)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	if c.cfg.Goroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.cfg.Goroutines
	}
	return sub
}

// Ping checks that the changes subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.changes})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %s does not exist", c.changes)
	default:
		return fmt.Errorf("get subscription %s: %w", c.changes, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// subscriptionResourceName accepts a bare subscription id or a full resource
// name and returns the full name, or "" when it cannot be built.
func subscriptionResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/subscriptions/"):
		return name
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/subscriptions/" + name
}
