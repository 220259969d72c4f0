// Package mongostore keeps feedback records in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/feedback"
)

const (
	defaultDatabase   = "interview_feedback"
	defaultCollection = "feedback"
	connectTimeout    = 10 * time.Second
	pingTimeout       = 2 * time.Second
)

type Config struct {
	URI        string
	Database   string
	Collection string
}

type document struct {
	ID                  string                   `bson:"_id"`
	InterviewID         string                   `bson:"interviewId"`
	UserID              string                   `bson:"userId"`
	TotalScore          int                      `bson:"totalScore"`
	CategoryScores      []feedback.CategoryScore `bson:"categoryScores"`
	Strengths           []string                 `bson:"strengths"`
	AreasForImprovement []string                 `bson:"areasForImprovement"`
	FinalAssessment     string                   `bson:"finalAssessment"`
	CreatedAt           time.Time                `bson:"createdAt"`
	UpdatedAt           time.Time                `bson:"updatedAt"`
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// Open connects, pings the server and makes sure the owner index exists.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is not configured")
	}
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, pingTimeout)
	defer cancelPing()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := New(client.Database(cfg.Database).Collection(cfg.Collection), logger)

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to mongodb",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)

	return s, nil
}

// New wraps an already connected collection.
func New(collection *mongo.Collection, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:     collection.Database().Client(),
		collection: collection,
		logger:     logger,
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "interviewId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("feedback_owner"),
	})
	if err != nil {
		return fmt.Errorf("creating owner index: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*feedback.Record, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) FindByOwner(ctx context.Context, interviewID, userID string) (*feedback.Record, error) {
	return s.findOne(ctx, ownerFilter(interviewID, userID))
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*feedback.Record, error) {
	var doc document
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, feedback.ErrNotFound
		}
		return nil, fmt.Errorf("finding feedback: %w", err)
	}
	return fromDocument(&doc), nil
}

// Create upserts by owner: identity fields are only written on insert.
func (s *Store) Create(ctx context.Context, rec *feedback.Record) (*feedback.Record, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc document
	err := s.collection.FindOneAndUpdate(ctx, ownerFilter(rec.InterviewID, rec.UserID), createUpdate(rec), opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("upserting feedback: %w", err)
	}
	return fromDocument(&doc), nil
}

func (s *Store) Replace(ctx context.Context, rec *feedback.Record) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": rec.ID}, bson.M{"$set": mutableFields(rec)})
	if err != nil {
		return fmt.Errorf("updating feedback %s: %w", rec.ID, err)
	}
	if res.MatchedCount == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func ownerFilter(interviewID, userID string) bson.M {
	return bson.M{"interviewId": interviewID, "userId": userID}
}

func createUpdate(rec *feedback.Record) bson.M {
	return bson.M{
		"$set": mutableFields(rec),
		"$setOnInsert": bson.M{
			"_id":         rec.ID,
			"interviewId": rec.InterviewID,
			"userId":      rec.UserID,
			"createdAt":   rec.CreatedAt.UTC(),
		},
	}
}

func mutableFields(rec *feedback.Record) bson.M {
	doc := toDocument(rec)
	return bson.M{
		"totalScore":          doc.TotalScore,
		"categoryScores":      doc.CategoryScores,
		"strengths":           doc.Strengths,
		"areasForImprovement": doc.AreasForImprovement,
		"finalAssessment":     doc.FinalAssessment,
		"updatedAt":           doc.UpdatedAt,
	}
}

func toDocument(rec *feedback.Record) *document {
	doc := &document{
		ID:                  rec.ID,
		InterviewID:         rec.InterviewID,
		UserID:              rec.UserID,
		TotalScore:          rec.TotalScore,
		CategoryScores:      rec.CategoryScores,
		Strengths:           rec.Strengths,
		AreasForImprovement: rec.AreasForImprovement,
		FinalAssessment:     rec.FinalAssessment,
		CreatedAt:           rec.CreatedAt.UTC(),
		UpdatedAt:           rec.UpdatedAt.UTC(),
	}
	if doc.CategoryScores == nil {
		doc.CategoryScores = []feedback.CategoryScore{}
	}
	if doc.Strengths == nil {
		doc.Strengths = []string{}
	}
	if doc.AreasForImprovement == nil {
		doc.AreasForImprovement = []string{}
	}
	return doc
}

func fromDocument(doc *document) *feedback.Record {
	return &feedback.Record{
		ID:                  doc.ID,
		InterviewID:         doc.InterviewID,
		UserID:              doc.UserID,
		TotalScore:          doc.TotalScore,
		CategoryScores:      doc.CategoryScores,
		Strengths:           doc.Strengths,
		AreasForImprovement: doc.AreasForImprovement,
		FinalAssessment:     doc.FinalAssessment,
		CreatedAt:           doc.CreatedAt.UTC(),
		UpdatedAt:           doc.UpdatedAt.UTC(),
	}
}
