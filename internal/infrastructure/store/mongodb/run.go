package mongodb

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

const storeName = "mongo"

type MongoRunRepo struct {
	runsCol *mongo.Collection
}

func NewMongoRunRepo(db *mongo.Database) repository.RunRepository {
	col := db.Collection("runs")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})

	return &MongoRunRepo{
		runsCol: col,
	}
}

func (r *MongoRunRepo) Create(ctx context.Context, run *entity.Run) error {
	metrics.IncRunsCreated()
	metrics.IncDBFileOp(storeName, "put")

	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	_, err := r.runsCol.InsertOne(ctx, run)
	if err != nil {
		metrics.IncError("mongo_run_repo", "create_error")
		return err
	}
	return nil
}

func (r *MongoRunRepo) GetByID(ctx context.Context, id string) (*entity.Run, error) {
	metrics.IncDBFileOp(storeName, "get")

	var run entity.Run
	err := r.runsCol.FindOne(ctx, bson.M{"id": id}).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.IncError("mongo_run_repo", "get_error")
		return nil, err
	}
	return &run, nil
}

func (r *MongoRunRepo) List(ctx context.Context) ([]*entity.Run, error) {
	return r.find(ctx, bson.D{}, "list")
}

func (r *MongoRunRepo) ListByStatus(ctx context.Context, status entity.RunStatus) ([]*entity.Run, error) {
	return r.find(ctx, bson.M{"status": status}, "list_by_status")
}

func (r *MongoRunRepo) find(ctx context.Context, filter any, op string) ([]*entity.Run, error) {
	metrics.IncDBFileOp(storeName, "list")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})
	cur, err := r.runsCol.Find(ctx, filter, opts)
	if err != nil {
		metrics.IncError("mongo_run_repo", op+"_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var runs []*entity.Run
	for cur.Next(ctx) {
		var run entity.Run
		if err := cur.Decode(&run); err != nil {
			metrics.IncError("mongo_run_repo", op+"_decode_error")
			return nil, err
		}
		runs = append(runs, &run)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_run_repo", op+"_cursor_error")
	}
	return runs, cur.Err()
}

func (r *MongoRunRepo) Update(ctx context.Context, run *entity.Run) error {
	metrics.IncDBFileOp(storeName, "put")

	run.UpdatedAt = time.Now()
	res, err := r.runsCol.ReplaceOne(ctx, bson.M{"id": run.ID}, run)
	if err != nil {
		metrics.IncError("mongo_run_repo", "update_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRunRepo) UpdateStatus(ctx context.Context, id string, status entity.RunStatus) error {
	return r.set(ctx, id, bson.M{"status": status}, "update_status")
}

func (r *MongoRunRepo) UpdateProgress(ctx context.Context, p entity.Progress) error {
	return r.set(ctx, p.RunID, bson.M{
		"progress": p.Percent,
		"state":    p.State,
		"message":  p.Message,
	}, "update_progress")
}

func (r *MongoRunRepo) set(ctx context.Context, id string, fields bson.M, op string) error {
	metrics.IncDBFileOp(storeName, "put")

	fields["updated_at"] = time.Now()
	res, err := r.runsCol.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": fields})
	if err != nil {
		metrics.IncError("mongo_run_repo", op+"_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRunRepo) Delete(ctx context.Context, id string) error {
	metrics.IncDBFileOp(storeName, "delete")

	res, err := r.runsCol.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		metrics.IncError("mongo_run_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRunRepo) CountByStatus(ctx context.Context, status entity.RunStatus) (int, error) {
	metrics.IncDBFileOp(storeName, "count")

	count, err := r.runsCol.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		metrics.IncError("mongo_run_repo", "count_by_status_error")
		return 0, err
	}
	return int(count), nil
}
