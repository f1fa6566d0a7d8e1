package services

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/cenkalti/backoff"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/merge"
	"github.com/gitfolio/backend/internal/models"
)

// MongoRecordService is the Mongo-backed RecordStore. One document per
// identity, addressed by _id. Partial updates are flattened into dotted
// $set paths, so the deep merge executes server-side as a single atomic
// document operation; content fields and their timestamps always land in
// the same write.
type MongoRecordService struct {
	client     *mongo.Client
	db         *mongo.Database
	recordsCol *mongo.Collection
	logger     *zap.Logger
	now        func() time.Time
}

func NewMongoRecordService(ctx context.Context, mongoURI, dbName string, logger *zap.Logger) (*MongoRecordService, error) {
	// Atlas occasionally fails TLS negotiation in some environments unless we force TLS 1.2.
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	var client *mongo.Client

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	err := backoff.RetryNotify(func() error {
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
		if err != nil {
			return err
		}
		if err := c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(ctx)
			return err
		}
		client = c
		return nil
	}, bo, func(err error, d time.Duration) {
		logger.Warn("mongo connect failed, retrying", zap.Error(err), zap.Duration("backoff", d))
	})
	if err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	col := db.Collection("records")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "timestamps.updated", Value: -1}}},
	})

	logger.Info("mongo connected", zap.String("db", dbName))

	return &MongoRecordService{
		client:     client,
		db:         db,
		recordsCol: col,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *MongoRecordService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoRecordService) Get(ctx context.Context, identity string) (*models.UserRecord, error) {
	var rec models.UserRecord
	if err := s.recordsCol.FindOne(ctx, bson.M{"_id": identity}).Decode(&rec); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *MongoRecordService) Create(ctx context.Context, rec *models.UserRecord) (*models.UserRecord, error) {
	now := s.now().UTC()
	stored := *rec
	stored.Bookmarks = NormalizeBookmarks(rec.Bookmarks)
	stored.Timestamps.Created = now
	stored.Timestamps.Updated = now

	if _, err := s.recordsCol.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrRecordExists
		}
		return nil, err
	}
	return &stored, nil
}

func (s *MongoRecordService) Update(ctx context.Context, identity string, patch models.RecordPatch) (*models.UserRecord, error) {
	patchDoc := make(map[string]interface{}, len(patch))
	for k, v := range patch {
		patchDoc[k] = v
	}
	// Slug is write-once; a patch can never move it.
	delete(patchDoc, "slug")

	set := merge.Flatten(patchDoc)
	set["timestamps.updated"] = s.now().UTC()

	res := s.recordsCol.FindOneAndUpdate(
		ctx,
		bson.M{"_id": identity},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.UserRecord
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *MongoRecordService) ReplaceBookmarks(ctx context.Context, identity string, bookmarks []models.Bookmark) ([]models.Bookmark, error) {
	normalized := NormalizeBookmarks(bookmarks)

	res := s.recordsCol.FindOneAndUpdate(
		ctx,
		bson.M{"_id": identity},
		bson.M{"$set": bson.M{
			"bookmarks":          normalized,
			"timestamps.updated": s.now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.UserRecord
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return updated.Bookmarks, nil
}

// Delete is idempotent: a zero delete count is not an error.
func (s *MongoRecordService) Delete(ctx context.Context, identity string) error {
	_, err := s.recordsCol.DeleteOne(ctx, bson.M{"_id": identity})
	return err
}
