package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// TTLIndexName is the name of the expiry index on creation_date.
const TTLIndexName = "expiration_date"

type DatabaseManager struct {
	Client   *mongo.Client
	Database string
}

// New connects the shared client pool (e.g. 30 conns).
func New(ctx context.Context, uri string, database string, maxConnection uint64) (*DatabaseManager, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(maxConnection).
		SetMaxConnIdleTime(5 * time.Minute)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return &DatabaseManager{Client: client, Database: database}, nil
}

// Collection returns a RecordStore bound to the named collection.
func (dm *DatabaseManager) Collection(name string) *RecordStore {
	return &RecordStore{coll: dm.Client.Database(dm.Database).Collection(name)}
}

// Close disconnects the pool
func (dm *DatabaseManager) Close(ctx context.Context) error {
	return dm.Client.Disconnect(ctx)
}

type RecordStore struct {
	coll *mongo.Collection
}

func (s *RecordStore) FindByPath(ctx context.Context, path string) (*Timesheet, error) {
	var record Timesheet
	err := s.coll.FindOne(ctx, bson.M{"random_path": path}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, NotFound("timesheet", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find timesheet %s: %w", path, err)
	}
	return &record, nil
}

func (s *RecordStore) Exists(ctx context.Context, path string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"random_path": path}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check timesheet %s: %w", path, err)
	}
	return n > 0, nil
}

func (s *RecordStore) Insert(ctx context.Context, record *Timesheet) error {
	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Conflict("Path already exists")
		}
		return fmt.Errorf("failed to insert timesheet %s: %w", record.RandomPath, err)
	}
	return nil
}

func (s *RecordStore) SetApproved(ctx context.Context, path string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"random_path": path},
		bson.M{"$set": bson.M{"approved": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to approve timesheet %s: %w", path, err)
	}
	if res.MatchedCount == 0 {
		return NotFound("timesheet", path)
	}
	return nil
}

func (s *RecordStore) MarkConfirmationSent(ctx context.Context, path string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"random_path": path},
		bson.M{"$set": bson.M{"confirmation_sent": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark confirmation for %s: %w", path, err)
	}
	if res.MatchedCount == 0 {
		return NotFound("timesheet", path)
	}
	return nil
}

// EnsureTTLIndex creates the expiry index on creation_date unless one with the
// same name already exists.
func (s *RecordStore) EnsureTTLIndex(ctx context.Context, expireAfter time.Duration) error {
	cursor, err := s.coll.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var idx struct {
			Name string `bson:"name"`
		}
		if err := cursor.Decode(&idx); err != nil {
			return fmt.Errorf("failed to decode index: %w", err)
		}
		if idx.Name == TTLIndexName {
			return nil
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("failed to iterate indexes: %w", err)
	}

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "creation_date", Value: 1}},
		Options: options.Index().
			SetName(TTLIndexName).
			SetExpireAfterSeconds(int32(expireAfter / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("failed to create %s index: %w", TTLIndexName, err)
	}
	return nil
}
