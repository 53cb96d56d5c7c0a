package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Settings controls how the Mongo client is built.
type Settings struct {
	URI           string
	Timeout       time.Duration // connect + server selection
	SocketTimeout time.Duration
	MaxPoolSize   uint64
}

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, s Settings) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	clientOpts := options.Client().
		ApplyURI(s.URI).
		SetServerSelectionTimeout(s.Timeout).
		SetRetryWrites(true)
	if s.SocketTimeout > 0 {
		clientOpts.SetSocketTimeout(s.SocketTimeout)
	}
	if s.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(s.MaxPoolSize)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectWithRetry retries ConnectMongo with exponential backoff to tolerate startup races.
func ConnectWithRetry(ctx context.Context, s Settings, maxAttempts int) (*mongo.Client, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := ConnectMongo(ctx, s)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

// Classify maps driver errors onto the domain error kinds.
// Missing documents become models.ErrNotFound; timeouts and network failures
// become models.ErrTransient. Other errors pass through unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	return err
}
