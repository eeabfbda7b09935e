package wine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// ErrMongoConnect is returned when all connection attempts are exhausted.
var ErrMongoConnect = errors.New("wine: failed to connect to mongodb")

// MongoConfig configures the document database connection. Defaults suit
// hosted deployments, whose cold starts motivate the retry loop.
type MongoConfig struct {
	URL            string        `env:"MONGODB_URL,required"`
	Database       string        `env:"MONGODB_DATABASE" envDefault:"sacarolha"`
	Collection     string        `env:"MONGODB_COLLECTION" envDefault:"vinhos"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	RetryAttempts  int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

// MongoStore is the document-database Store.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoStore connects to the configured database with retries and
// returns a Store over the wine collection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}

	var client *mongo.Client
	var lastErr error
	for attempt := 0; attempt < cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}

		client, lastErr = mongo.Connect(options.Client().
			ApplyURI(cfg.URL).
			SetConnectTimeout(cfg.ConnectTimeout))
		if lastErr != nil {
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		lastErr = client.Ping(pingCtx, readpref.Primary())
		cancel()
		if lastErr == nil {
			break
		}
		_ = client.Disconnect(ctx)
		client = nil
	}
	if client == nil {
		return nil, fmt.Errorf("%w: %v", ErrMongoConnect, lastErr)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		now:    time.Now,
	}, nil
}

// Healthcheck returns a probe suitable for readiness endpoints.
func (s *MongoStore) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.client.Ping(ctx, readpref.Primary())
	}
}

// Close disconnects from the database.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, record Record) (Record, error) {
	if err := record.Validate(); err != nil {
		return Record{}, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return Record{}, fmt.Errorf("wine: inserting record: %w", err)
	}
	return record, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, id string) (Record, error) {
	var record Record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("wine: loading record: %w", err)
	}
	return record, nil
}

// Update implements Store. CreatedAt is preserved from the stored copy.
func (s *MongoStore) Update(ctx context.Context, record Record) (Record, error) {
	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	existing, err := s.Get(ctx, record.ID)
	if err != nil {
		return Record{}, err
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = s.now()

	result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": record.ID}, record)
	if err != nil {
		return Record{}, fmt.Errorf("wine: updating record: %w", err)
	}
	if result.MatchedCount == 0 {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("wine: deleting record: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements Store, newest first.
func (s *MongoStore) List(ctx context.Context) ([]Record, error) {
	cursor, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("wine: listing records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("wine: decoding records: %w", err)
	}
	return records, nil
}
