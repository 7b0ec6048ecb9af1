package mongo

import (
	"context"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ClicksRepository struct {
	coll *mongo.Collection
}

type clickDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	LinkID    primitive.ObjectID `bson:"linkId"`
	ClickedAt time.Time          `bson:"clickedAt"`
	IPAddress string             `bson:"ipAddress,omitempty"`
	UserAgent string             `bson:"userAgent,omitempty"`
	Referer   string             `bson:"referer,omitempty"`
}

type dailyDoc struct {
	Date  string `bson:"_id"`
	Count int64  `bson:"count"`
}

func NewClicksRepository(m *db.Mongo) (*ClicksRepository, error) {
	repo := &ClicksRepository{coll: m.Collection("click_events")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "linkId", Value: 1}},
			Options: options.Index().SetName("link_id"),
		},
		{
			Keys:    bson.D{{Key: "linkId", Value: 1}, {Key: "clickedAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("link_clicked_desc"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// Record appends a click. Mongo has no foreign keys, so the link is expected
// to have been resolved by the caller.
func (r *ClicksRepository) Record(ctx context.Context, click *links.ClickEvent) error {
	linkID, err := primitive.ObjectIDFromHex(click.LinkID)
	if err != nil {
		return links.ErrNotFound
	}

	doc := clickDoc{
		ID:        primitive.NewObjectID(),
		LinkID:    linkID,
		ClickedAt: click.ClickedAt.UTC(),
		IPAddress: click.IPAddress,
		UserAgent: click.UserAgent,
		Referer:   click.Referer,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}

	click.ID = doc.ID.Hex()
	return nil
}

func (r *ClicksRepository) CountByLink(ctx context.Context, linkID string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(linkID)
	if err != nil {
		return 0, nil
	}
	return r.coll.CountDocuments(ctx, bson.M{"linkId": oid})
}

func (r *ClicksRepository) RecentByLink(ctx context.Context, linkID string, limit int) ([]links.ClickEvent, error) {
	oid, err := primitive.ObjectIDFromHex(linkID)
	if err != nil || limit <= 0 {
		return []links.ClickEvent{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "clickedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{"linkId": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []clickDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]links.ClickEvent, 0, len(docs))
	for _, doc := range docs {
		out = append(out, links.ClickEvent{
			ID:        doc.ID.Hex(),
			LinkID:    linkID,
			ClickedAt: doc.ClickedAt.UTC(),
			IPAddress: doc.IPAddress,
			UserAgent: doc.UserAgent,
			Referer:   doc.Referer,
		})
	}
	return out, nil
}

func (r *ClicksRepository) DailyByLink(ctx context.Context, linkID string, from, to time.Time) ([]links.DailyCount, error) {
	oid, err := primitive.ObjectIDFromHex(linkID)
	if err != nil {
		return []links.DailyCount{}, nil
	}

	cur, err := r.coll.Aggregate(ctx, dailyPipeline(oid, from, to))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []dailyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]links.DailyCount, 0, len(docs))
	for _, doc := range docs {
		out = append(out, links.DailyCount{Date: doc.Date, Count: doc.Count})
	}
	return out, nil
}

func dailyPipeline(linkID primitive.ObjectID, from, to time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"linkId":    linkID,
			"clickedAt": bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     "$clickedAt",
				"timezone": "UTC",
			}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
