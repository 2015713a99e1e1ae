package db

import (
	"context"
	"fmt"

	"screenlist/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds configuration required to connect to MongoDB
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoClient wraps the MongoDB client and the record collection
type MongoClient struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
	cfg         MongoConfig
}

// NewMongoClient constructs a Mongo client. Nothing is dialed until Connect.
func NewMongoClient(cfg MongoConfig) *MongoClient {
	if cfg.Database == "" {
		cfg.Database = "screenlist"
	}
	if cfg.Collection == "" {
		cfg.Collection = "records"
	}
	return &MongoClient{cfg: cfg}
}

// Name identifies the mirror in logs
func (c *MongoClient) Name() string { return "mongo" }

// Connect establishes the connection to MongoDB and verifies it with a ping
func (c *MongoClient) Connect(ctx context.Context) error {
	if c.cfg.URI == "" {
		return fmt.Errorf("mongo URI is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.cfg.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongo: %w", err)
	}

	c.mongoClient = client
	c.collection = client.Database(c.cfg.Database).Collection(c.cfg.Collection)
	return nil
}

// Close closes the MongoDB connection
func (c *MongoClient) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveRecords upserts each record by its canonical key
func (c *MongoClient) SaveRecords(ctx context.Context, records []domain.EnrichmentRecord) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	if len(records) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		if rec.Key == "" {
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"key": rec.Key}).
			SetReplacement(rec).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}

	if _, err := c.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to upsert records: %w", err)
	}
	return nil
}

// GetAllRecords fetches every record in the collection
func (c *MongoClient) GetAllRecords(ctx context.Context) ([]domain.EnrichmentRecord, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.EnrichmentRecord
	for cursor.Next(ctx) {
		var rec domain.EnrichmentRecord
		if err := cursor.Decode(&rec); err != nil {
			continue // Skip invalid documents
		}
		if rec.Key != "" {
			out = append(out, rec)
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}
