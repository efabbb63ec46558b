// Package mongodb stores survey responses in a MongoDB collection, one
// document per response, keyed by ObjectID.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"survey/internal/core"
)

const disconnectTimeout = 5 * time.Second

type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri and verifies the primary is reachable before returning.
func Connect(ctx context.Context, uri, database, collection string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Repository{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Insert implements storage.ResponseWriter.
func (r *Repository) Insert(ctx context.Context, rec core.Record) (string, error) {
	res, err := r.coll.InsertOne(ctx, bson.M(rec.Document()))
	if err != nil {
		return "", fmt.Errorf("insert response: %w", err)
	}
	id := idString(res.InsertedID)
	slog.DebugContext(ctx, "Response saved to MongoDB", "id", id)
	return id, nil
}

// ListDocuments implements storage.ResponseLister.
func (r *Repository) ListDocuments(ctx context.Context) ([]core.Document, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find responses: %w", err)
	}
	defer cur.Close(ctx)

	var docs []core.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		docs = append(docs, Normalize(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return docs, nil
}

// Normalize converts a decoded BSON document into plain Go values: ObjectIDs
// become hex strings under "id", BSON datetimes become time.Time and nested
// documents become maps.
func Normalize(raw bson.M) core.Document {
	doc := make(core.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	if _, ok := doc[core.KeyID]; !ok {
		if id, ok := doc[core.KeyMongoID]; ok {
			doc[core.KeyID] = id
		}
	}
	delete(doc, core.KeyMongoID)
	return doc
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time()
	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(x.String(), 64); err == nil {
			return f
		}
		return x.String()
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(v)
	}
}
