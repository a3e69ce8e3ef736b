package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/toolstock/internal/domain/models"
)

const changesCollection = "inventory_changes"

// Repository defines the interface for the inventory change journal.
type Repository interface {
	Record(ctx context.Context, event models.ChangeEvent) error
	MarkSynced(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int64) ([]models.ChangeEvent, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return NewFromClient(client, dbName), nil
}

// NewFromClient wraps an already connected client.
func NewFromClient(client *mongo.Client, dbName string) *MongoDBRepository {
	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: changesCollection,
	}
}

func (r *MongoDBRepository) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

// Record stores one change event.
func (r *MongoDBRepository) Record(ctx context.Context, event models.ChangeEvent) error {
	if _, err := r.collection().InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert change event: %w", err)
	}
	return nil
}

// MarkSynced flags every pending event as propagated to the remote copy and
// returns how many were updated.
func (r *MongoDBRepository) MarkSynced(ctx context.Context) (int64, error) {
	res, err := r.collection().UpdateMany(ctx,
		bson.M{"synced": false},
		bson.M{"$set": bson.M{"synced": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark events synced: %w", err)
	}
	return res.ModifiedCount, nil
}

// Recent returns the latest events, newest first.
func (r *MongoDBRepository) Recent(ctx context.Context, limit int64) ([]models.ChangeEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.ChangeEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode change events: %w", err)
	}
	return events, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
