package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/psyportal/portal-client/internal/core/domain"
)

const storageCollection = "client_storage"

// Store is a KeyValue backed by a MongoDB collection. Each key is one
// document whose _id is "<namespace>|<key>".
type Store struct {
	coll      *mongo.Collection
	namespace string
}

func NewStore(db *mongo.Database, namespace string) *Store {
	return &Store{coll: db.Collection(storageCollection), namespace: namespace}
}

type storageDoc struct {
	ID        string `bson:"_id"`
	Namespace string `bson:"namespace"`
	Key       string `bson:"key"`
	Value     string `bson:"value"`
	UpdatedAt int64  `bson:"updated_at"`
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var doc storageDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": s.id(key)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("find storage key: %w", err)
	}
	return doc.Value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	doc := storageDoc{
		ID:        s.id(key),
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Unix(),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert storage key: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = s.id(k)
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete storage keys: %w", err)
	}
	return nil
}

func (s *Store) id(key string) string {
	return s.namespace + "|" + key
}
