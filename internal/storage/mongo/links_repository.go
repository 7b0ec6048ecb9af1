package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LinksRepository struct {
	coll *mongo.Collection
}

type linkDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ShortCode   string             `bson:"shortCode"`
	OriginalURL string             `bson:"originalUrl"`
	CreatedAt   time.Time          `bson:"createdAt"`
	ExpiresAt   *time.Time         `bson:"expiresAt,omitempty"`
	OwnerID     string             `bson:"ownerId,omitempty"`
}

func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection("links")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shortCode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_short_code"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("owner_created_desc").SetSparse(true),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *LinksRepository) Insert(ctx context.Context, link *links.Link) error {
	doc := linkDoc{
		ID:          primitive.NewObjectID(),
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt.UTC(),
		ExpiresAt:   link.ExpiresAt,
		OwnerID:     link.OwnerID,
	}

	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		link.ID = doc.ID.Hex()
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return links.ErrDuplicateCode
	}

	return err
}

func (r *LinksRepository) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	return r.findOne(ctx, bson.M{"shortCode": code})
}

func (r *LinksRepository) FindByID(ctx context.Context, id string) (*links.Link, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, links.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *LinksRepository) findOne(ctx context.Context, filter bson.M) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

func mapLinkDoc(doc linkDoc) *links.Link {
	out := &links.Link{
		ID:          doc.ID.Hex(),
		ShortCode:   doc.ShortCode,
		OriginalURL: doc.OriginalURL,
		CreatedAt:   doc.CreatedAt.UTC(),
		OwnerID:     doc.OwnerID,
	}
	if doc.ExpiresAt != nil {
		t := doc.ExpiresAt.UTC()
		out.ExpiresAt = &t
	}
	return out
}
