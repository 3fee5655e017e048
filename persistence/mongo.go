// persistence/mongo.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a DocStore backed by a single MongoDB collection. Commits run
// inside a driver session transaction and carry the same version guards as
// the SQL backends.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoDocument struct {
	Key     string `bson:"_id"`
	Data    string `bson:"data"` // JSON text; keeps the document shape identical across backends
	Version int64  `bson:"version"`
}

func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}
	return &Mongo{
		client:     client,
		collection: client.Database(database).Collection("documents"),
	}, nil
}

func (m *Mongo) Get(ctx context.Context, key string, dest any) error {
	return storeGet(ctx, m, key, dest)
}

func (m *Mongo) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return runTransaction(ctx, m, fn)
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func (m *Mongo) fetch(ctx context.Context, key string) (map[string]any, int64, error) {
	var doc mongoDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(doc.Data), &data); err != nil {
		return nil, 0, err
	}
	return data, doc.Version, nil
}

func (m *Mongo) listKeys(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": primitive.Regex{Pattern: "^" + regexQuote(prefix)}}}
	cursor, err := m.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		keys = append(keys, doc.Key)
	}
	return keys, cursor.Err()
}

func (m *Mongo) commit(ctx context.Context, reads map[string]int64, ops []writeOp) error {
	session, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for key, version := range reads {
			var doc mongoDocument
			err := m.collection.FindOne(sc, bson.M{"_id": key}).Decode(&doc)
			current := doc.Version
			if errors.Is(err, mongo.ErrNoDocuments) {
				current = 0
			} else if err != nil {
				return nil, err
			}
			if current != version {
				return nil, ErrConflict
			}
		}

		for _, op := range ops {
			if err := m.applyOp(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (m *Mongo) applyOp(ctx context.Context, op writeOp) error {
	switch op.kind {
	case opSet:
		raw, err := json.Marshal(op.doc)
		if err != nil {
			return err
		}
		return m.upsert(ctx, op.key, raw)
	case opUpdate:
		base, _, err := m.fetch(ctx, op.key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		merged, err := mergeUpdate(base, op.fields)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return m.upsert(ctx, op.key, raw)
	case opDelete:
		_, err := m.collection.DeleteOne(ctx, bson.M{"_id": op.key})
		return err
	}
	return nil
}

func (m *Mongo) upsert(ctx context.Context, key string, data []byte) error {
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$set": bson.M{"data": string(data)},
			"$inc": bson.M{"version": 1},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// regexQuote escapes regex metacharacters in a key prefix. Keys only contain
// letters, digits and slashes today, but the escape keeps List safe for any key.
func regexQuote(s string) string {
	const meta = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		for j := 0; j < len(meta); j++ {
			if c == meta[j] {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}
