package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"counselmeet/internal/config"
	"counselmeet/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names
const (
	MeetingsCollection       = "meetings"
	CounselorsCollection     = "counselors"
	SessionHistoryCollection = "session_history"
)

var (
	client   *mongo.Client
	database *mongo.Database
	once     sync.Once
	initErr  error
)

// InitMongoDB connects once and returns the configured database
func InitMongoDB(cfg config.MongoConfig) (*mongo.Database, error) {
	once.Do(func() {
		initErr = connectToMongoDB(cfg)
	})
	return database, initErr
}

func connectToMongoDB(cfg config.MongoConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout+cfg.ServerSelectionTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetHeartbeatInterval(cfg.HeartbeatInterval).
		SetRetryWrites(true).
		SetRetryReads(true)

	c, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err = c.Ping(ctx, readpref.Primary()); err != nil {
		_ = c.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	client = c
	database = c.Database(cfg.Database)
	logger.Infof("connected to MongoDB database %s", cfg.Database)
	return nil
}

// Disconnect closes the MongoDB connection
func Disconnect(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// HealthCheck pings the primary
func HealthCheck(ctx context.Context) map[string]interface{} {
	if database == nil {
		return map[string]interface{}{
			"status": "disconnected",
			"error":  "database not initialized",
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}
	return map[string]interface{}{
		"status":   "connected",
		"database": database.Name(),
	}
}

// IndexSet groups the indexes of one collection
type IndexSet struct {
	Collection string
	Indexes    []mongo.IndexModel
}

// Indexes lists every index the service relies on. The partial unique index
// on slot_hold is what makes slot selection race free.
func Indexes() []IndexSet {
	return []IndexSet{
		{
			Collection: MeetingsCollection,
			Indexes: []mongo.IndexModel{
				{
					Keys: bson.D{{Key: "slot_hold", Value: 1}},
					Options: options.Index().
						SetName("uniq_live_slot").
						SetUnique(true).
						SetPartialFilterExpression(bson.M{"slot_hold": bson.M{"$type": "string"}}),
				},
				{
					Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}},
				},
				{
					Keys: bson.D{{Key: "counselor_id", Value: 1}, {Key: "meeting_date", Value: 1}, {Key: "status", Value: 1}},
				},
				{
					Keys: bson.D{{Key: "status", Value: 1}, {Key: "grace_active", Value: 1}, {Key: "grace_end_time", Value: 1}},
				},
				{
					Keys: bson.D{{Key: "status", Value: 1}, {Key: "auto_expire_at", Value: 1}},
				},
			},
		},
		{
			Collection: CounselorsCollection,
			Indexes: []mongo.IndexModel{
				{
					Keys: bson.D{{Key: "is_active", Value: 1}},
				},
			},
		},
		{
			Collection: SessionHistoryCollection,
			Indexes: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "meeting_id", Value: 1}},
					Options: options.Index().SetName("uniq_meeting").SetUnique(true),
				},
				{
					Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}},
				},
				{
					Keys: bson.D{{Key: "counselor_id", Value: 1}, {Key: "session_date", Value: 1}},
				},
			},
		},
	}
}

// EnsureIndexes creates the indexes on db. Unlike a best-effort background
// job, a failure here is returned: the unique indexes carry invariants.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, set := range Indexes() {
		if len(set.Indexes) == 0 {
			continue
		}
		if _, err := db.Collection(set.Collection).Indexes().CreateMany(ctx, set.Indexes); err != nil {
			return fmt.Errorf("create indexes for %s: %w", set.Collection, err)
		}
		logger.Infof("ensured %d indexes for collection %s", len(set.Indexes), set.Collection)
	}
	return nil
}
