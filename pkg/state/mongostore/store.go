// Package mongostore provides a MongoDB backed state.Backend. Each draft is
// one document keyed by its storage key.
package mongostore

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

const DefaultCollection = "survey_drafts"

type document struct {
	Key       string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store persists drafts in a single collection.
type Store struct {
	collection *mongo.Collection
	now        func() time.Time
}

// Connect dials uri, pings the primary and returns a store over
// database.collection together with the client so callers can disconnect.
func Connect(ctx context.Context, uri, database, collection string) (*Store, *mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return New(client.Database(database).Collection(collection)), client, nil
}

func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection, now: time.Now}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find draft: %w", err)
	}
	return []byte(doc.Payload), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{
		"$set": bson.M{
			"payload":   string(value),
			"updatedAt": s.now().UTC(),
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": key}, update, opts); err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
