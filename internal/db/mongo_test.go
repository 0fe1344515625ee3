package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/models"
)

func publicationDoc(id primitive.ObjectID, name string, ads ...bson.D) bson.D {
	arr := bson.A{}
	for _, ad := range ads {
		arr = append(arr, ad)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "publicationId", Value: 7},
		{Key: "basicInfo", Value: bson.D{{Key: "publicationName", Value: name}}},
		{Key: "distributionChannels", Value: bson.D{
			{Key: "newsletters", Value: bson.A{
				bson.D{{Key: "name", Value: "Daily"}, {Key: "advertisingOpportunities", Value: arr}},
			}},
		}},
	}
}

func TestMongoListPublications(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes legacy and migrated ads", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		id1, id2 := primitive.NewObjectID(), primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			publicationDoc(id1, "Chicago Reader",
				bson.D{{Key: "name", Value: "Banner"}, {Key: "dimensions", Value: "300x250, 600x150"}}),
		)
		second := mtest.CreateCursorResponse(1, ns, mtest.NextBatch,
			publicationDoc(id2, "Austin Weekly",
				bson.D{
					{Key: "name", Value: "Hero"},
					{Key: "format", Value: bson.D{{Key: "dimensions", Value: bson.A{"300x250", "728x90"}}}},
				}),
		)
		killCursors := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, second, killCursors)

		pubs, err := store.ListPublications(context.Background())
		require.NoError(t, err)
		require.Len(t, pubs, 2)

		assert.Equal(t, id1, pubs[0].ID)
		assert.Equal(t, "Chicago Reader", pubs[0].Name())
		ad, err := pubs[0].Ad(0, 0)
		require.NoError(t, err)
		require.NotNil(t, ad.Dimensions)
		assert.Equal(t, "300x250, 600x150", *ad.Dimensions)
		assert.False(t, ad.HasFormat())

		ad, err = pubs[1].Ad(0, 0)
		require.NoError(t, err)
		require.True(t, ad.HasFormat())
		assert.True(t, ad.Format.Dimensions.Equal(formats.Multiple("300x250", "728x90")))
	})

	mt.Run("tolerates malformed documents", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		good, bad := primitive.NewObjectID(), primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		broken := publicationDoc(bad, "Broken Gazette")
		broken[1] = bson.E{Key: "publicationId", Value: "seven"}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				publicationDoc(good, "Chicago Reader",
					bson.D{{Key: "name", Value: "Listed"}, {Key: "dimensions", Value: bson.A{"300x250", "600x150"}}},
					bson.D{
						{Key: "name", Value: "Numeric"},
						{Key: "dimensions", Value: "728x90"},
						{Key: "format", Value: bson.D{{Key: "dimensions", Value: bson.A{300, 250}}}},
					},
					bson.D{{Key: "name", Value: "Odd"}, {Key: "dimensions", Value: 600}},
				),
				broken,
			),
		)

		pubs, err := store.ListPublications(context.Background())
		require.NoError(t, err)
		require.Len(t, pubs, 2)

		assert.Empty(t, pubs[0].LoadErr)
		listed, err := pubs[0].Ad(0, 0)
		require.NoError(t, err)
		require.NotNil(t, listed.Dimensions)
		assert.Equal(t, "300x250, 600x150", *listed.Dimensions)
		assert.Empty(t, listed.Issue)

		numeric, err := pubs[0].Ad(0, 1)
		require.NoError(t, err)
		assert.Nil(t, numeric.Format)
		assert.False(t, numeric.HasFormat())
		assert.Equal(t, "728x90", *numeric.Dimensions)
		assert.Contains(t, numeric.Issue, "unreadable format")

		odd, err := pubs[0].Ad(0, 2)
		require.NoError(t, err)
		assert.Nil(t, odd.Dimensions)
		assert.Contains(t, odd.Issue, "unreadable dimensions")

		assert.Equal(t, bad, pubs[1].ID)
		assert.Equal(t, "Broken Gazette", pubs[1].Name())
		assert.NotEmpty(t, pubs[1].LoadErr)
		assert.Empty(t, pubs[1].Channels.Newsletters)
	})

	mt.Run("surfaces read errors", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
			Name:    "InterruptedAtShutdown",
		}))
		_, err := store.ListPublications(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "find publications")
	})
}

func TestMongoGetPublication(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		id := primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, publicationDoc(id, "Chicago Reader")))

		pub, err := store.GetPublication(context.Background(), id.Hex())
		require.NoError(t, err)
		assert.Equal(t, "Chicago Reader", pub.Name())
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.GetPublication(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	mt.Run("invalid id", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		_, err := store.GetPublication(context.Background(), "not-an-id")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestMongoSetAdFormats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("targets format paths only", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := store.SetAdFormats(context.Background(), primitive.NewObjectID(), []models.FormatChange{
			{Newsletter: 0, Ad: 1, Format: &formats.Format{Dimensions: formats.Single("300x250")}},
			{Newsletter: 1, Ad: 0},
		})
		require.NoError(t, err)

		evt := mt.GetStartedEvent()
		require.NotNil(t, evt)
		assert.Equal(t, "update", evt.CommandName)
		u := evt.Command.Lookup("updates", "0", "u").Document()

		set := u.Lookup("$set").Document()
		dims := set.Lookup("distributionChannels.newsletters.0.advertisingOpportunities.1.format", "dimensions")
		assert.Equal(t, "300x250", dims.StringValue())

		unset := u.Lookup("$unset").Document()
		_, err = unset.LookupErr("distributionChannels.newsletters.1.advertisingOpportunities.0.format")
		assert.NoError(t, err)
	})

	mt.Run("guards by ad name", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := store.SetAdFormats(context.Background(), primitive.NewObjectID(), []models.FormatChange{
			{Newsletter: 0, Ad: 2, AdName: "Mystery", Format: &formats.Format{Dimensions: formats.Single("300x250")}},
		})
		assert.ErrorIs(t, err, models.ErrNotFound)

		evt := mt.GetStartedEvent()
		require.NotNil(t, evt)
		q := evt.Command.Lookup("updates", "0", "q").Document()
		assert.Equal(t, "Mystery", q.Lookup("distributionChannels.newsletters.0.advertisingOpportunities.2.name").StringValue())
	})

	mt.Run("no changes skips the write", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		require.NoError(t, store.SetAdFormats(context.Background(), primitive.NewObjectID(), nil))
		assert.Nil(t, mt.GetStartedEvent())
	})

	mt.Run("unmatched publication", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := store.SetAdFormats(context.Background(), primitive.NewObjectID(), []models.FormatChange{
			{Format: &formats.Format{Dimensions: formats.Single("600x150")}},
		})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	mt.Run("write error", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    121,
			Message: "document failed validation",
		}))

		err := store.SetAdFormats(context.Background(), primitive.NewObjectID(), []models.FormatChange{
			{Format: &formats.Format{Dimensions: formats.Single("600x150")}},
		})
		require.Error(t, err)
		var we mongo.WriteException
		assert.True(t, errors.As(err, &we))
	})
}
