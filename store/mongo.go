package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pyq-server/models"
)

// MongoStore keeps one document per paper in the papers collection. Paper
// ids are ObjectID hex strings stored as the string _id.
type MongoStore struct {
	Col    *mongo.Collection
	client *mongo.Client
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{Col: db.Collection("papers"), client: client}
}

// EnsureIndexes creates the listing index. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "is_published", Value: 1}, {Key: "year", Value: -1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "exam", Value: 1}, {Key: "year", Value: 1}, {Key: "title", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create paper indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	filter := bson.M{}
	if !f.IncludeUnpublished {
		filter["is_published"] = true
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Exam != "" {
		filter["exam"] = f.Exam
	}
	if f.Year != 0 {
		filter["year"] = f.Year
	}
	if f.Subject != "" {
		filter["subject"] = containsRegex(f.Subject)
	}
	if f.Search != "" {
		re := containsRegex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"title_hindi": re},
			bson.M{"description": re},
			bson.M{"tags": re},
		}
	}

	opts := options.Find().
		SetProjection(bson.M{"questions": 0}).
		SetSort(bson.D{{Key: "year", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer cur.Close(ctx)

	list := []models.PaperSummary{}
	for cur.Next(ctx) {
		var ps models.PaperSummary
		if err := cur.Decode(&ps); err != nil {
			return nil, fmt.Errorf("failed to decode paper: %w", err)
		}
		list = append(list, ps)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}
	return list, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Paper, error) {
	var p models.Paper
	err := s.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load paper: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) RecordView(ctx context.Context, id string) (*models.Paper, error) {
	var p models.Paper
	err := s.Col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record view: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) Create(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, func() string { return primitive.NewObjectID().Hex() })
	if _, err := s.Col.InsertOne(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}
	return c, nil
}

func (s *MongoStore) Replace(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	c := p.Clone()
	prepare(c, func() string { return primitive.NewObjectID().Hex() })
	c.Revision = p.Revision + 1

	filter := bson.M{"_id": c.ID, "revision": p.Revision}
	if p.Revision == 0 {
		// documents written before revisions existed have no field
		filter["revision"] = bson.M{"$in": bson.A{0, nil}}
	}
	var out models.Paper
	err := s.Col.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$set": contentFields(c)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.Col.CountDocuments(ctx, bson.M{"_id": c.ID})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check paper: %w", cerr)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update paper: %w", err)
	}
	return &out, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.Col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAttempt uses a pipeline update; expressions inside one $set stage
// all read the document as it was before the stage.
func (s *MongoStore) RecordAttempt(ctx context.Context, id string, percentage float64) (models.PaperStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"average_score": bson.M{"$divide": bson.A{
				bson.M{"$add": bson.A{
					bson.M{"$multiply": bson.A{"$average_score", "$attempts"}},
					percentage,
				}},
				bson.M{"$add": bson.A{"$attempts", 1}},
			}},
			"attempts": bson.M{"$add": bson.A{"$attempts", 1}},
		}}},
	}

	var st struct {
		Views        int     `bson:"views"`
		Attempts     int     `bson:"attempts"`
		AverageScore float64 `bson:"average_score"`
	}
	err := s.Col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		pipeline,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"views": 1, "attempts": 1, "average_score": 1}),
	).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PaperStats{}, ErrNotFound
	}
	if err != nil {
		return models.PaperStats{}, fmt.Errorf("failed to record attempt: %w", err)
	}
	return models.PaperStats{Views: st.Views, Attempts: st.Attempts, AverageScore: st.AverageScore}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// contentFields lists everything an edit may change. Counters, _id and
// created_at are absent.
func contentFields(p *models.Paper) bson.M {
	return bson.M{
		"title":              p.Title,
		"title_hindi":        p.TitleHindi,
		"description":        p.Description,
		"description_hindi":  p.DescriptionHindi,
		"subject":            p.Subject,
		"subject_hindi":      p.SubjectHindi,
		"instructions":       p.Instructions,
		"instructions_hindi": p.InstructionsHindi,
		"exam":               p.Exam,
		"year":               p.Year,
		"category":           p.Category,
		"tags":               p.Tags,
		"questions":          p.Questions,
		"total_questions":    p.TotalQuestions,
		"total_marks":        p.TotalMarks,
		"time_limit":         p.TimeLimit,
		"is_published":       p.IsPublished,
		"updated_at":         p.UpdatedAt,
		"revision":           p.Revision,
	}
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
