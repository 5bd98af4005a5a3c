package etl

import (
	"context"
	"time"

	"github.com/BartekS5/sparkify/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecorder upserts run history into a MongoDB collection, one
// document per (run_id, phase).
type MongoRecorder struct {
	Client     *mongo.Client
	Database   string
	Collection string
}

func NewMongoRecorder(client *mongo.Client, database, collection string) *MongoRecorder {
	return &MongoRecorder{
		Client:     client,
		Database:   database,
		Collection: collection,
	}
}

func (m *MongoRecorder) coll() *mongo.Collection {
	return m.Client.Database(m.Database).Collection(m.Collection)
}

func (m *MongoRecorder) Record(ctx context.Context, runs ...Run) error {
	var writes []mongo.WriteModel

	for _, run := range runs {
		if run.RunID == "" {
			logger.Errorf("Skipping run record without run_id for phase %s", run.Phase)
			continue
		}

		filter := bson.M{"run_id": run.RunID, "phase": run.Phase}
		update := bson.M{"$set": run}
		model := mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true)
		writes = append(writes, model)
	}

	if len(writes) > 0 {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		res, err := m.coll().BulkWrite(ctx, writes)
		if err != nil {
			return err
		}
		logger.Default().Debug("Mongo BulkWrite",
			"matched", res.MatchedCount, "modified", res.ModifiedCount, "upserted", res.UpsertedCount)
	}
	return nil
}

// Recent returns the latest records of pipeline, newest first. An empty
// pipeline matches every pipeline.
func (m *MongoRecorder) Recent(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	filter := bson.M{}
	if pipeline != "" {
		filter["pipeline"] = pipeline
	}
	findOpts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "started_at", Value: -1}})

	cursor, err := m.coll().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []Run
	for cursor.Next(ctx) {
		var run Run
		if err := cursor.Decode(&run); err != nil {
			logger.Errorf("Error decoding run record: %v", err)
			continue
		}
		results = append(results, run)
	}
	return results, cursor.Err()
}
