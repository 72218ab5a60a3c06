// database/mongo.go
package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var client *mongo.Client
var databaseName string

// Connect establishes connection to MongoDB with proper configuration
func Connect(uri, db string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(200).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second).       // Close idle connections after 30s
		SetServerSelectionTimeout(5 * time.Second). // Fail fast if server unavailable
		SetSocketTimeout(15 * time.Second)          // Individual query timeout

	var err error
	client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	// Verify connection with ping
	if err = client.Ping(ctx, nil); err != nil {
		return err
	}

	databaseName = db
	logrus.Info("connected to MongoDB")
	return nil
}

// Disconnect closes the MongoDB connection gracefully
func Disconnect() error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return client.Disconnect(ctx)
}

// GetDatabase returns the database instance
func GetDatabase() *mongo.Database {
	if client == nil {
		logrus.Fatal("MongoDB client not initialized, call Connect() first")
	}
	return client.Database(databaseName)
}

// HealthCheck verifies MongoDB connection is alive
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return mongo.ErrClientDisconnected
	}
	return client.Ping(ctx, nil)
}
