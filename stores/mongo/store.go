package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds one document per key.
const CollectionName = "kv"

type kvDocument struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri, verifies the connection and returns a store on dbName.
func Connect(ctx context.Context, uri, dbName string) (*mongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &mongoStore{
		client: client,
		coll:   client.Database(dbName).Collection(CollectionName),
	}, nil
}

func (s *mongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc kvDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logrus.WithField("key", key).Debug("Key not found in mongo")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find key %s: %w", key, err)
	}
	if doc.Value == nil {
		doc.Value = []byte{}
	}
	return doc.Value, true, nil
}

func (s *mongoStore) Set(ctx context.Context, key string, value []byte) error {
	doc := kvDocument{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert key %s: %w", key, err)
	}

	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	}).Debug("Value stored in mongo")
	return nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
