package events

import (
	"context"
	"fmt"
	"time"

	"github.com/commevents/backend/internal/database"
	"github.com/commevents/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MutateFunc inspects and mutates an event inside a transaction.
// Returning an error aborts the transaction without writing.
type MutateFunc func(e *models.Event) error

// Repository defines persistence operations for events.
type Repository interface {
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	// Transact reads the event, applies fn and writes the result atomically.
	// Concurrent transactions on the same event are isolated; conflicts are retried.
	Transact(ctx context.Context, id string, fn MutateFunc) (*models.Event, error)
	// DeleteOwned deletes the event only when organizer matches.
	DeleteOwned(ctx context.Context, id, organizer string) (bool, error)
	Delete(ctx context.Context, id string) error
	SetCalendarEventID(ctx context.Context, id, calendarEventID string) error
}

// MongoRepository implements Repository using a MongoDB collection.
// Event ids are hex ObjectIDs stored as strings in _id.
type MongoRepository struct {
	client    *mongo.Client
	col       *mongo.Collection
	opTimeout time.Duration
}

// NewMongoRepository creates a repository for the given collection.
// Transact needs a replica set or sharded cluster (MongoDB transactions).
func NewMongoRepository(client *mongo.Client, col *mongo.Collection, opTimeout time.Duration) *MongoRepository {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &MongoRepository{client: client, col: col, opTimeout: opTimeout}
}

// EnsureIndexes creates the secondary indexes used by event queries.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "organizer", Value: 1}}},
		{Keys: bson.D{{Key: "startDate", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID().Hex()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	if _, err := r.col.InsertOne(ctx, e); err != nil {
		return nil, fmt.Errorf("insert event: %w", database.Classify(err))
	}
	return e, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	var e models.Event
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, database.Classify(err)
	}
	return &e, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}}))
	if err != nil {
		return nil, database.Classify(err)
	}
	defer cur.Close(ctx)
	out := []*models.Event{}
	for cur.Next(ctx) {
		var e models.Event
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, database.Classify(cur.Err())
}

func (r *MongoRepository) Transact(ctx context.Context, id string, fn MutateFunc) (*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	sess, err := r.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", database.Classify(err))
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	// WithTransaction re-runs the callback on TransientTransactionError
	// (including write conflicts with a concurrent registration) until ctx expires.
	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var e models.Event
		if err := r.col.FindOne(sc, bson.M{"_id": id}).Decode(&e); err != nil {
			return nil, database.Classify(err)
		}
		if err := fn(&e); err != nil {
			return nil, err
		}
		if _, err := r.col.ReplaceOne(sc, bson.M{"_id": id}, &e); err != nil {
			return nil, err
		}
		return &e, nil
	}, txnOpts)
	if err != nil {
		return nil, database.Classify(err)
	}
	return res.(*models.Event), nil
}

func (r *MongoRepository) DeleteOwned(ctx context.Context, id, organizer string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "organizer": organizer})
	if err != nil {
		return false, database.Classify(err)
	}
	return res.DeletedCount == 1, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return database.Classify(err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) SetCalendarEventID(ctx context.Context, id, calendarEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	set := bson.M{"googleCalendarEventId": calendarEventID, "updatedAt": time.Now().UTC()}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return database.Classify(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
