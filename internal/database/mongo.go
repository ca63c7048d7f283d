package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"promoreg/entity"
	"promoreg/internal/config"
	"promoreg/internal/registry"
	"promoreg/lib/sl"
)

const (
	collectionUsers      = "users"
	collectionPromotions = "promotions"
	collectionEvents     = "promotion_events"
)

type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	log      *slog.Logger
}

func connectionURI(conf config.Mongo) string {
	return fmt.Sprintf("mongodb://%s:%s", conf.Host, conf.Port)
}

// NewMongoClient connects and prepares indexes; it returns nil, nil when MongoDB is
// disabled in the configuration.
func NewMongoClient(ctx context.Context, conf *config.Config, log *slog.Logger) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	clientOptions := options.Client().ApplyURI(connectionURI(conf.Mongo))
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	m := &MongoDB{
		client:   client,
		database: client.Database(conf.Mongo.Database),
		log:      log.With(sl.Module("database.mongo")),
	}
	if err = m.CreateIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	m.log.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("database", conf.Mongo.Database),
	).Info("connected to mongodb")
	return m, nil
}

// CreateIndexes creates the slot key, the partial unique index over live names and
// the journal lookup index.
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	promotions := m.database.Collection(collectionPromotions)
	_, err := promotions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slot", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("promotion_slot_unique"),
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("promotion_live_name_unique").
				SetPartialFilterExpression(bson.D{{Key: "name", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create promotion indexes: %w", err)
	}

	events := m.database.Collection(collectionEvents)
	_, err = events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slot", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("event_slot_seq"),
	})
	if err != nil {
		return fmt.Errorf("create event index: %w", err)
	}

	users := m.database.Collection(collectionUsers)
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_token_unique"),
	})
	if err != nil {
		return fmt.Errorf("create user index: %w", err)
	}
	return nil
}

func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// SavePromotion upserts the slot document and appends the event to the journal.
// The slot document is authoritative; a failed journal write is logged only.
func (m *MongoDB) SavePromotion(ctx context.Context, p *registry.Promotion, evt registry.Event) error {
	collection := m.database.Collection(collectionPromotions)
	filter := bson.D{{Key: "slot", Value: p.Slot}}
	update := bson.D{{Key: "$set", Value: toDoc(p)}}
	opts := options.Update().SetUpsert(true)
	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", registry.ErrDuplicatePromotion, err)
		}
		return fmt.Errorf("mongodb upsert promotion: %w", err)
	}

	if _, err := m.database.Collection(collectionEvents).InsertOne(ctx, eventToDoc(evt)); err != nil {
		m.log.With(
			sl.Slot(evt.Slot),
			slog.String("event", string(evt.Type)),
			sl.Err(err),
		).Warn("journal write failed")
	}
	return nil
}

// LoadPromotions returns every stored slot, tombstones included.
func (m *MongoDB) LoadPromotions(ctx context.Context) ([]*registry.Promotion, error) {
	collection := m.database.Collection(collectionPromotions)
	cursor, err := collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "slot", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find promotions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []promotionDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb decode promotions: %w", err)
	}
	promotions := make([]*registry.Promotion, 0, len(docs))
	for i := range docs {
		promotions = append(promotions, docs[i].toPromotion())
	}
	return promotions, nil
}

// Events returns the journal of a slot in commit order, newest limit entries.
func (m *MongoDB) Events(ctx context.Context, slot uint64, limit int64) ([]registry.Event, error) {
	collection := m.database.Collection(collectionEvents)
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := collection.Find(ctx, bson.D{{Key: "slot", Value: slot}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb decode events: %w", err)
	}
	events := make([]registry.Event, len(docs))
	for i := range docs {
		events[len(docs)-1-i] = docs[i].toEvent()
	}
	return events, nil
}

func (m *MongoDB) GetUser(token string) (*entity.User, error) {
	collection := m.database.Collection(collectionUsers)
	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	err := collection.FindOne(context.Background(), filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("mongodb find user: %w", err)
	}
	return &user, nil
}
