package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/logger"
)

var (
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
	vaultDB     *mongo.Database
)

// ConnectMongoDB establishes connection to MongoDB
func ConnectMongoDB(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.BuildDatabaseURI()).
		SetMaxPoolSize(uint64(cfg.Database.MaxConnections)).
		SetMinPoolSize(uint64(cfg.Database.MinConnections)).
		SetMaxConnIdleTime(cfg.Database.MaxIdleTime)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoClient = client
	mongoDB = client.Database(cfg.Database.Name)
	vaultDB = client.Database(cfg.Vault.Database)

	logger.Log.WithField("database", cfg.Database.Name).Info("Connected to MongoDB")

	if err := createIndexes(ctx, cfg); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// GetMongoDB returns the database holding conversation logs
func GetMongoDB() *mongo.Database {
	if mongoDB == nil {
		logger.Log.Fatal("MongoDB not initialized")
	}
	return mongoDB
}

// GetVaultDB returns the document vault database
func GetVaultDB() *mongo.Database {
	if vaultDB == nil {
		logger.Log.Fatal("MongoDB not initialized")
	}
	return vaultDB
}

func createIndexes(ctx context.Context, cfg *config.Config) error {
	if cfg.Logs.Store == "mongodb" {
		conversationIndexes := []mongo.IndexModel{
			{Keys: bson.D{{Key: "session_id", Value: 1}}},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		}
		if _, err := mongoDB.Collection(conversationsCollection).Indexes().CreateMany(ctx, conversationIndexes); err != nil {
			return fmt.Errorf("failed to create conversation indexes: %w", err)
		}
	}

	if cfg.Vault.Enabled {
		userIndexes := []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		}
		if _, err := vaultDB.Collection(cfg.Vault.Collection).Indexes().CreateMany(ctx, userIndexes); err != nil {
			return fmt.Errorf("failed to create vault user indexes: %w", err)
		}
	}

	logger.Log.Info("Database indexes created successfully")
	return nil
}

// DisconnectMongoDB closes the MongoDB connection
func DisconnectMongoDB() error {
	if mongoClient == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mongoClient.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	logger.Log.Info("Disconnected from MongoDB")
	return nil
}
