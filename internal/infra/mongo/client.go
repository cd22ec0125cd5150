package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/infra/config"
)

const defaultConnectTimeout = 10 * time.Second

// Client wraps mongo.Client bound to the configured database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	cfg      config.MongoSettings
	logger   *zap.Logger
}

// NewClient connects to MongoDB and verifies the primary is reachable.
func NewClient(ctx context.Context, cfg config.MongoSettings, logger *zap.Logger) (*Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	logger.Info("MongoDB connection established",
		zap.String("database", cfg.Database),
		zap.String("users_collection", cfg.UsersCollection),
	)

	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Users returns the chat users collection.
func (c *Client) Users() *mongo.Collection {
	return c.database.Collection(c.cfg.UsersCollection)
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("Closing MongoDB connection")
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
