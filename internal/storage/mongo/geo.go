package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kuex/internal/domain"
)

type GeoRepo struct {
	countries  *mongo.Collection
	continents *mongo.Collection
}

func NewGeoRepo(db *mongo.Database) *GeoRepo {
	return &GeoRepo{
		countries:  db.Collection(colCountries),
		continents: db.Collection(colContinents),
	}
}

func (r *GeoRepo) FindCountry(ctx context.Context, name string) (*domain.Country, error) {
	var doc countryDoc
	err := r.countries.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.Country{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		ContinentID: doc.ContinentID.Hex(),
	}, nil
}

func (r *GeoRepo) FindContinent(ctx context.Context, name string) (*domain.Continent, error) {
	var doc continentDoc
	err := r.continents.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.Continent{ID: doc.ID.Hex(), Name: doc.Name}, nil
}

func (r *GeoRepo) CountryIDsByContinent(ctx context.Context, continentID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(continentID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	cur, err := r.countries.Find(ctx, bson.M{"continentId": oid},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("countries by continent: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.Hex())
	}
	return ids, nil
}

// UpsertContinent returns the id of the continent with the given name,
// creating it if needed.
func (r *GeoRepo) UpsertContinent(ctx context.Context, name string) (string, error) {
	var doc continentDoc
	err := r.continents.FindOneAndUpdate(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{"name": name}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return "", fmt.Errorf("upsert continent %q: %w", name, err)
	}
	return doc.ID.Hex(), nil
}

func (r *GeoRepo) UpsertCountry(ctx context.Context, name, continentID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(continentID)
	if err != nil {
		return "", domain.ErrInvalidID
	}
	var doc countryDoc
	err = r.countries.FindOneAndUpdate(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{"name": name, "continentId": oid}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return "", fmt.Errorf("upsert country %q: %w", name, err)
	}
	return doc.ID.Hex(), nil
}
