package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/feedback"
)

func testRecord() *feedback.Record {
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
	return &feedback.Record{
		ID:          "fb-1",
		InterviewID: "int-1",
		UserID:      "user-1",
		TotalScore:  66,
		CategoryScores: []feedback.CategoryScore{
			{Name: feedback.CategoryTechnical, Score: 66, Comment: "solid"},
		},
		Strengths:       []string{"concise"},
		FinalAssessment: "promising",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateUpdateKeepsIdentityOnInsert(t *testing.T) {
	update := createUpdate(testRecord())

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	for _, key := range []string{"_id", "interviewId", "userId", "createdAt"} {
		assert.NotContains(t, set, key)
	}
	assert.Equal(t, 66, set["totalScore"])

	onInsert, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "fb-1", onInsert["_id"])
	assert.Equal(t, "int-1", onInsert["interviewId"])
	assert.Equal(t, "user-1", onInsert["userId"])
}

func TestDocumentRoundTrip(t *testing.T) {
	rec := testRecord()

	data, err := bson.Marshal(toDocument(rec))
	require.NoError(t, err)

	var doc document
	require.NoError(t, bson.Unmarshal(data, &doc))

	back := fromDocument(&doc)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.CategoryScores, back.CategoryScores)
	assert.Equal(t, rec.Strengths, back.Strengths)
	assert.Empty(t, back.AreasForImprovement)
	assert.True(t, rec.CreatedAt.Equal(back.CreatedAt))
}

func TestOwnerFilter(t *testing.T) {
	assert.Equal(t, bson.M{"interviewId": "int-1", "userId": "user-1"}, ownerFilter("int-1", "user-1"))
}

func storedDocument(t *testing.T, rec *feedback.Record) bson.D {
	t.Helper()

	data, err := bson.Marshal(toDocument(rec))
	require.NoError(t, err)

	var doc bson.D
	require.NoError(t, bson.Unmarshal(data, &doc))
	return doc
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestStoreAgainstMockServer(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create upserts by owner", func(mt *mtest.T) {
		s := New(mt.Coll, zap.NewNop())

		// The owner already has feedback under another id; the server returns it.
		existing := testRecord()
		existing.ID = "fb-existing"
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: storedDocument(mt.T, existing)}))

		got, err := s.Create(context.Background(), testRecord())
		require.NoError(mt, err)
		assert.Equal(mt, "fb-existing", got.ID)
		assert.Equal(mt, "int-1", got.InterviewID)

		ev := mt.GetStartedEvent()
		require.NotNil(mt, ev)
		assert.Equal(mt, "findAndModify", ev.CommandName)

		upsert, ok := ev.Command.Lookup("upsert").BooleanOK()
		assert.True(mt, ok && upsert, "findAndModify must upsert")
		returnNew, ok := ev.Command.Lookup("new").BooleanOK()
		assert.True(mt, ok && returnNew, "the stored document must be returned")

		owner, ok := ev.Command.Lookup("query", "interviewId").StringValueOK()
		assert.True(mt, ok)
		assert.Equal(mt, "int-1", owner)

		insertID, ok := ev.Command.Lookup("update", "$setOnInsert", "_id").StringValueOK()
		assert.True(mt, ok)
		assert.Equal(mt, "fb-1", insertID)
		score, ok := ev.Command.Lookup("update", "$set", "totalScore").AsInt64OK()
		assert.True(mt, ok)
		assert.EqualValues(mt, 66, score)
		set, ok := ev.Command.Lookup("update", "$set").DocumentOK()
		require.True(mt, ok)
		for _, key := range []string{"_id", "interviewId", "userId", "createdAt"} {
			_, err := set.LookupErr(key)
			assert.Error(mt, err, "%s must only be written on insert", key)
		}
	})

	mt.Run("lookups decode or report not found", func(mt *mtest.T) {
		s := New(mt.Coll, zap.NewNop())

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, storedDocument(mt.T, testRecord())),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)

		got, err := s.FindByOwner(context.Background(), "int-1", "user-1")
		require.NoError(mt, err)
		assert.Equal(mt, "fb-1", got.ID)
		assert.Equal(mt, testRecord().CategoryScores, got.CategoryScores)

		ev := mt.GetStartedEvent()
		require.NotNil(mt, ev)
		assert.Equal(mt, "find", ev.CommandName)
		user, ok := ev.Command.Lookup("filter", "userId").StringValueOK()
		assert.True(mt, ok)
		assert.Equal(mt, "user-1", user)

		_, err = s.Get(context.Background(), "fb-missing")
		assert.ErrorIs(mt, err, feedback.ErrNotFound)
	})

	mt.Run("replace reports unmatched ids", func(mt *mtest.T) {
		s := New(mt.Coll, zap.NewNop())

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		require.NoError(mt, s.Replace(context.Background(), testRecord()))

		ev := mt.GetStartedEvent()
		require.NotNil(mt, ev)
		assert.Equal(mt, "update", ev.CommandName)

		err := s.Replace(context.Background(), testRecord())
		assert.ErrorIs(mt, err, feedback.ErrNotFound)
	})
}
