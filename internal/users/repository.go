package users

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
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	UpsertBySub(ctx context.Context, u *models.User) (*models.User, error)
	GetBySub(ctx context.Context, sub string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	AddCreatedEvent(ctx context.Context, userID, eventID string) error
	AddAttendingEvent(ctx context.Context, userID, eventID string) error
	SetPhotoURL(ctx context.Context, id, photoURL string) error
	SetCalendarCredential(ctx context.Context, id string, cred models.CalendarCredential) error
	// UpdateCalendarToken stores a refreshed access token. An empty refreshToken
	// keeps the stored one. Users without a credential get ErrCalendarNotConnected.
	UpdateCalendarToken(ctx context.Context, id, accessToken string, expiry time.Time, refreshToken string) error
	ClearCalendarCredential(ctx context.Context, id string) error
}

var errNoRefreshToken = fmt.Errorf("%w: calendar credential requires a refresh token", models.ErrInvalid)

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col       *mongo.Collection
	opTimeout time.Duration
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection, opTimeout time.Duration) *MongoUserRepository {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &MongoUserRepository{col: col, opTimeout: opTimeout}
}

// EnsureIndexes creates the unique index on the identity provider subject.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sub", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *MongoUserRepository) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	now := time.Now().UTC()

	// empty claims leave stored values alone
	set := bson.M{"updatedAt": now}
	if u.Email != "" {
		set["email"] = u.Email
	}
	if u.DisplayName != "" {
		set["displayName"] = u.DisplayName
	}
	if u.PhotoURL != "" {
		set["photoURL"] = u.PhotoURL
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID().Hex(),
			"role":            models.RoleUser,
			"createdEvents":   []string{},
			"attendingEvents": []string{},
			"createdAt":       now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var updated models.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"sub": u.Sub}, update, opts).Decode(&updated)
	if mongo.IsDuplicateKeyError(err) {
		// two first logins raced on the unique sub index; the loser becomes an update
		err = r.col.FindOneAndUpdate(ctx, bson.M{"sub": u.Sub}, update, opts).Decode(&updated)
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &updated, nil
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, database.Classify(err)
	}
	return &u, nil
}

func (r *MongoUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return r.find(ctx, bson.M{"sub": sub})
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	update := bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}}
	var u models.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err != nil {
		return nil, database.Classify(err)
	}
	return &u, nil
}

// updateOne applies update to the user with the given id and maps a miss to ErrNotFound.
func (r *MongoUserRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return database.Classify(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) AddCreatedEvent(ctx context.Context, userID, eventID string) error {
	return r.updateOne(ctx, userID, bson.M{
		"$addToSet": bson.M{"createdEvents": eventID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoUserRepository) AddAttendingEvent(ctx context.Context, userID, eventID string) error {
	return r.updateOne(ctx, userID, bson.M{
		"$addToSet": bson.M{"attendingEvents": eventID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoUserRepository) SetPhotoURL(ctx context.Context, id, photoURL string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"photoURL": photoURL, "updatedAt": time.Now().UTC()}})
}

func (r *MongoUserRepository) SetCalendarCredential(ctx context.Context, id string, cred models.CalendarCredential) error {
	if cred.RefreshToken == "" {
		return errNoRefreshToken
	}
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"googleCalendar": cred, "updatedAt": time.Now().UTC()}})
}

func (r *MongoUserRepository) UpdateCalendarToken(ctx context.Context, id, accessToken string, expiry time.Time, refreshToken string) error {
	set := bson.M{
		"googleCalendar.accessToken": accessToken,
		"googleCalendar.tokenExpiry": expiry,
		"updatedAt":                  time.Now().UTC(),
	}
	if refreshToken != "" {
		set["googleCalendar.refreshToken"] = refreshToken
	}
	// a concurrent disconnect must not be undone by a late refresh
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	filter := bson.M{"_id": id, "googleCalendar": bson.M{"$exists": true}}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return database.Classify(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrCalendarNotConnected
	}
	return nil
}

func (r *MongoUserRepository) ClearCalendarCredential(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{
		"$unset": bson.M{"googleCalendar": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	})
}
