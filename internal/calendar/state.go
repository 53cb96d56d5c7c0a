package calendar

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/commevents/backend/internal/database"
	"github.com/commevents/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StateStore binds an OAuth state parameter to the user who started the flow.
// States are single use.
type StateStore interface {
	Save(ctx context.Context, state, userID string, ttl time.Duration) error
	// Consume returns the owner and deletes the state. Unknown or expired
	// states yield models.ErrNotFound.
	Consume(ctx context.Context, state string) (string, error)
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RedisStateStore keeps states under "<prefix><state>" with a TTL.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStateStore(client *redis.Client, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = "oauth:state:"
	}
	return &RedisStateStore{client: client, prefix: prefix}
}

func (r *RedisStateStore) Save(ctx context.Context, state, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.prefix+state, userID, ttl).Err()
}

func (r *RedisStateStore) Consume(ctx context.Context, state string) (string, error) {
	userID, err := r.client.GetDel(ctx, r.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

type stateDoc struct {
	State     string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// MongoStateStore keeps states in a collection; a TTL index purges stale ones.
type MongoStateStore struct {
	col       *mongo.Collection
	opTimeout time.Duration
}

func NewMongoStateStore(col *mongo.Collection, opTimeout time.Duration) *MongoStateStore {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &MongoStateStore{col: col, opTimeout: opTimeout}
}

func (r *MongoStateStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (r *MongoStateStore) Save(ctx context.Context, state, userID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	doc := stateDoc{State: state, UserID: userID, ExpiresAt: time.Now().UTC().Add(ttl)}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return database.Classify(err)
	}
	return nil
}

func (r *MongoStateStore) Consume(ctx context.Context, state string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	// the TTL monitor runs about once a minute, so expiry is checked here too
	filter := bson.M{"_id": state, "expiresAt": bson.M{"$gt": time.Now().UTC()}}
	var doc stateDoc
	if err := r.col.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return "", database.Classify(err)
	}
	return doc.UserID, nil
}
