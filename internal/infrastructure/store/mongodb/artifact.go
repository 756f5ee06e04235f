package mongodb

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

type MongoArtifactRepo struct {
	col *mongo.Collection
}

func NewMongoArtifactRepo(db *mongo.Database) repository.ArtifactRepository {
	col := db.Collection("artifacts")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "run_id", Value: 1}, bson.E{Key: "path", Value: 1}}},
	})

	return &MongoArtifactRepo{
		col: col,
	}
}

// SaveFiles replaces the stored file set of a run.
func (r *MongoArtifactRepo) SaveFiles(ctx context.Context, runID string, files []*entity.Artifact) error {
	if len(files) == 0 {
		return nil
	}

	metrics.IncDBFileOp(storeName, "put")

	if _, err := r.col.DeleteMany(ctx, bson.M{"run_id": runID}); err != nil {
		metrics.IncError("mongo_artifact_repo", "save_error")
		return err
	}

	docs := make([]interface{}, len(files))
	for i, f := range files {
		f.RunID = runID
		docs[i] = f
	}

	_, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		metrics.IncError("mongo_artifact_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoArtifactRepo) GetFiles(ctx context.Context, runID string) ([]*entity.Artifact, error) {
	metrics.IncDBFileOp(storeName, "get")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "path", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"run_id": runID}, opts)
	if err != nil {
		metrics.IncError("mongo_artifact_repo", "get_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var result []*entity.Artifact
	for cur.Next(ctx) {
		var doc entity.Artifact
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, &doc)
	}
	return result, cur.Err()
}

func (r *MongoArtifactRepo) ListRuns(ctx context.Context) ([]string, error) {
	metrics.IncDBFileOp(storeName, "list")

	values, err := r.col.Distinct(ctx, "run_id", bson.D{})
	if err != nil {
		metrics.IncError("mongo_artifact_repo", "list_error")
		return nil, err
	}

	runs := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			runs = append(runs, s)
		}
	}
	return runs, nil
}

func (r *MongoArtifactRepo) DeleteRun(ctx context.Context, runID string) error {
	metrics.IncDBFileOp(storeName, "delete")

	_, err := r.col.DeleteMany(ctx, bson.M{"run_id": runID})
	if err != nil {
		metrics.IncError("mongo_artifact_repo", "delete_error")
		return err
	}
	return nil
}
