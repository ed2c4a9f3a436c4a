package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tacogroup/prodlive/internal/domain/models"
)

// Repository defines the interface for machine storage.
type Repository interface {
	LoadMachines(ctx context.Context) ([]models.Machine, error)
	SaveMachine(ctx context.Context, m models.Machine) error
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

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "machines",
	}, nil
}

// LoadMachines returns every stored machine record.
func (r *MongoDBRepository) LoadMachines(ctx context.Context) ([]models.Machine, error) {
	collection := r.client.Database(r.dbName).Collection(r.collName)

	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query machines: %w", err)
	}
	defer cursor.Close(ctx)

	var machines []models.Machine
	if err := cursor.All(ctx, &machines); err != nil {
		return nil, fmt.Errorf("failed to decode machines: %w", err)
	}
	return machines, nil
}

// SaveMachine upserts a machine record keyed on (location, machine_id).
func (r *MongoDBRepository) SaveMachine(ctx context.Context, m models.Machine) error {
	collection := r.client.Database(r.dbName).Collection(r.collName)

	filter := bson.D{
		{Key: "location", Value: m.Location},
		{Key: "machine_id", Value: m.ID},
	}
	update := bson.D{{Key: "$set", Value: m}}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert machine %s/%d: %w", m.Location, m.ID, err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
