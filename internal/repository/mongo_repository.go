package repository

import (
	"context"
	"errors"

	"mocktest_backend/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collTests     = "mocktests"
	collQuestions = "questions"
	collAttempts  = "attempts"
	collUsers     = "users"
)

// MongoStore implements TestStore, AttemptStore and UserStore on one database.
type MongoStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{Client: client, DB: client.Database(database)}
}

// EnsureIndexes creates the lookup indexes the queries below rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.DB.Collection(collQuestions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "testId", Value: 1}},
	}); err != nil {
		return err
	}
	if _, err := s.DB.Collection(collAttempts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "testId", Value: 1}, {Key: "submittedAt", Value: -1}},
	}); err != nil {
		return err
	}
	_, err := s.DB.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, nil)
}

func mongoNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) CreateTest(ctx context.Context, test *model.MockTest) error {
	test.EnsureID()
	_, err := s.DB.Collection(collTests).InsertOne(ctx, test)
	return err
}

func (s *MongoStore) FindTestByID(ctx context.Context, id string) (*model.MockTest, error) {
	var test model.MockTest
	if err := s.DB.Collection(collTests).FindOne(ctx, bson.M{"_id": id}).Decode(&test); err != nil {
		return nil, mongoNotFound(err)
	}
	return &test, nil
}

func (s *MongoStore) ListTests(ctx context.Context) ([]model.MockTest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.DB.Collection(collTests).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	tests := []model.MockTest{}
	if err := cur.All(ctx, &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

func (s *MongoStore) CreateQuestion(ctx context.Context, q *model.Question) error {
	q.EnsureID()
	_, err := s.DB.Collection(collQuestions).InsertOne(ctx, q)
	return err
}

func (s *MongoStore) CreateQuestions(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(qs))
	for i := range qs {
		qs[i].EnsureID()
		docs[i] = qs[i]
	}
	_, err := s.DB.Collection(collQuestions).InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) findQuestions(ctx context.Context, filter bson.M) ([]model.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.DB.Collection(collQuestions).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	qs := []model.Question{}
	if err := cur.All(ctx, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (s *MongoStore) ListQuestions(ctx context.Context, testID string) ([]model.Question, error) {
	return s.findQuestions(ctx, bson.M{"testId": testID})
}

func (s *MongoStore) ListAllQuestions(ctx context.Context) ([]model.Question, error) {
	return s.findQuestions(ctx, bson.M{})
}

func (s *MongoStore) CreateAttempt(ctx context.Context, a *model.TestAttempt) error {
	a.EnsureID()
	_, err := s.DB.Collection(collAttempts).InsertOne(ctx, a)
	return err
}

func (s *MongoStore) FindAttemptByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	var a model.TestAttempt
	if err := s.DB.Collection(collAttempts).FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mongoNotFound(err)
	}
	return &a, nil
}

func (s *MongoStore) ListAttempts(ctx context.Context, testID string, page, limit int) ([]model.TestAttempt, int64, error) {
	filter := bson.M{}
	if testID != "" {
		filter["testId"] = testID
	}
	coll := s.DB.Collection(collAttempts)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "submittedAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	attempts := []model.TestAttempt{}
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := s.DB.Collection(collUsers).FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, mongoNotFound(err)
	}
	return &u, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) error {
	u.EnsureID()
	_, err := s.DB.Collection(collUsers).InsertOne(ctx, u)
	return err
}
