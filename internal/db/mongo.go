package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/models"
)

// MongoStore reads and updates publication documents.
type MongoStore struct {
	Client       *mongo.Client
	Publications *mongo.Collection
}

// InitMongo connects to MongoDB and returns a store bound to the given
// database and publications collection.
func InitMongo(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	zap.L().Info("Connected to MongoDB",
		zap.String("database", database),
		zap.String("collection", collection))
	return &MongoStore{
		Client:       client,
		Publications: client.Database(database).Collection(collection),
	}, nil
}

// NewMongoStore wraps an existing collection handle.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{Publications: coll}
}

// ListPublications returns every publication document. A document that
// cannot be decoded is returned with only its id and name and LoadErr set,
// so one bad record does not hide the rest of the collection.
func (m *MongoStore) ListPublications(ctx context.Context) ([]models.Publication, error) {
	cur, err := m.Publications.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find publications: %w", err)
	}
	defer cur.Close(ctx)

	var pubs []models.Publication
	for cur.Next(ctx) {
		var pub models.Publication
		if err := cur.Decode(&pub); err != nil {
			pub = unreadablePublication(cur.Current, err)
			zap.L().Warn("skipping unreadable publication",
				zap.String("publication_id", pub.ID.Hex()),
				zap.Error(err))
		}
		pubs = append(pubs, pub)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate publications: %w", err)
	}
	return pubs, nil
}

func unreadablePublication(doc bson.Raw, err error) models.Publication {
	pub := models.Publication{LoadErr: err.Error()}
	if id, ok := doc.Lookup("_id").ObjectIDOK(); ok {
		pub.ID = id
	}
	if name, ok := doc.Lookup("basicInfo", "publicationName").StringValueOK(); ok {
		pub.BasicInfo.PublicationName = name
	}
	return pub
}

// GetPublication returns the publication with the given hex object id.
func (m *MongoStore) GetPublication(ctx context.Context, id string) (*models.Publication, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}
	var pub models.Publication
	err = m.Publications.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&pub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find publication %s: %w", id, err)
	}
	return &pub, nil
}

// SetAdFormats applies all changes to one publication in a single update.
// Only the addressed format fields are touched, so fields this service does
// not map are preserved. Changes carrying an AdName also require the ad at
// that index to still have that name; otherwise nothing is written and
// ErrNotFound is returned.
func (m *MongoStore) SetAdFormats(ctx context.Context, id primitive.ObjectID, changes []models.FormatChange) error {
	if len(changes) == 0 {
		return nil
	}
	filter := bson.D{{Key: "_id", Value: id}}
	set := bson.D{}
	unset := bson.D{}
	for _, c := range changes {
		if c.AdName != "" {
			filter = append(filter, bson.E{Key: c.NamePath(), Value: c.AdName})
		}
		if c.Format == nil {
			unset = append(unset, bson.E{Key: c.Path(), Value: ""})
			continue
		}
		set = append(set, bson.E{Key: c.Path(), Value: c.Format})
	}
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := m.Publications.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update publication %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update publication %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}

// InsertPublications stores new publication documents. Used for seeding.
func (m *MongoStore) InsertPublications(ctx context.Context, pubs []models.Publication) error {
	if len(pubs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(pubs))
	for i := range pubs {
		docs[i] = pubs[i]
	}
	if _, err := m.Publications.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert publications: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (m *MongoStore) Close() {
	if m != nil && m.Client != nil {
		if err := m.Client.Disconnect(context.Background()); err != nil {
			zap.L().Error("mongo disconnect", zap.Error(err))
		}
	}
}
