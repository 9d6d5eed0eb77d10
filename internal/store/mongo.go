package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoTimeout = 10 * time.Second

// MongoConfig describes the document store used by MongoStore.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore keeps each notification as one document whose seen_by array is
// grown with $addToSet.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type notificationDocument struct {
	ID        string    `bson:"_id"`
	PostID    string    `bson:"post_id"`
	Message   string    `bson:"message"`
	SeenBy    []string  `bson:"seen_by"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMongoStore connects to MongoDB, verifies the connection and ensures indexes exist.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, errors.New("mongo store: uri is required")
	}
	database := strings.TrimSpace(cfg.Database)
	if database == "" {
		database = "solite"
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "notifications"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo store: connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo store: ping: %w", err)
	}

	store := &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
	if err := store.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

// NewMongoStoreFromCollection wraps an existing collection. The caller owns the client.
func NewMongoStoreFromCollection(coll *mongo.Collection) (*MongoStore, error) {
	if coll == nil {
		return nil, errors.New("mongo store: collection is required")
	}
	return &MongoStore{coll: coll}, nil
}

// EnsureIndexes creates the unique post_id index and the created_at index used by
// listing and retention.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "post_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("post_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo store: ensure indexes: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable through the store's collection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// Disconnect closes the underlying client when this store created it.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// FindByPostID implements NotificationStore.
func (s *MongoStore) FindByPostID(ctx context.Context, postID string) (*Notification, error) {
	return s.findOne(ctx, bson.M{"post_id": postID})
}

// Get implements NotificationStore.
func (s *MongoStore) Get(ctx context.Context, id string) (*Notification, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Notification, error) {
	var doc notificationDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo store: load notification: %w", err)
	}
	return doc.toNotification(), nil
}

// Insert implements NotificationStore.
func (s *MongoStore) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("mongo store: generate id: %w", err)
		}
		n.ID = id.String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	// BSON dates carry millisecond precision.
	n.CreatedAt = n.CreatedAt.UTC().Truncate(time.Millisecond)

	seenBy := make([]string, 0, len(n.SeenBy))
	seenBy = append(seenBy, n.SeenBy...)

	doc := notificationDocument{
		ID:        n.ID,
		PostID:    n.PostID,
		Message:   n.Message,
		SeenBy:    seenBy,
		CreatedAt: n.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePost
		}
		return fmt.Errorf("mongo store: insert notification: %w", err)
	}
	return nil
}

// AddSeen implements NotificationStore.
func (s *MongoStore) AddSeen(ctx context.Context, id, userID string, _ time.Time) (*Notification, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$addToSet": bson.M{"seen_by": userID}}

	var doc notificationDocument
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo store: mark seen: %w", err)
	}
	return doc.toNotification(), nil
}

// List implements NotificationStore.
func (s *MongoStore) List(ctx context.Context, opts ListOptions) ([]Notification, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo store: list notifications: %w", err)
	}

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo store: decode notifications: %w", err)
	}

	out := make([]Notification, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toNotification())
	}
	return out, nil
}

// Count implements NotificationStore.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	total, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo store: count notifications: %w", err)
	}
	return total, nil
}

// DeleteCreatedBefore implements NotificationStore.
func (s *MongoStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongo store: purge notifications: %w", err)
	}
	return result.DeletedCount, nil
}

func (d *notificationDocument) toNotification() *Notification {
	seenBy := d.SeenBy
	if seenBy == nil {
		seenBy = []string{}
	}
	return &Notification{
		ID:        d.ID,
		PostID:    d.PostID,
		Message:   d.Message,
		SeenBy:    seenBy,
		CreatedAt: d.CreatedAt.UTC(),
	}
}
