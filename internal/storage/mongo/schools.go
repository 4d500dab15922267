package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kuex/internal/domain"
)

type SchoolRepo struct {
	schools    *mongo.Collection
	countries  *mongo.Collection
	continents *mongo.Collection
}

func NewSchoolRepo(db *mongo.Database) *SchoolRepo {
	return &SchoolRepo{
		schools:    db.Collection(colSchools),
		countries:  db.Collection(colCountries),
		continents: db.Collection(colContinents),
	}
}

func schoolMatch(f domain.SchoolFilter) bson.M {
	filter := bson.M{}
	if f.MinCompletedSemester != nil {
		filter["minCompletedSemester"] = bson.M{"$gte": *f.MinCompletedSemester}
	}
	if f.Toefl != nil {
		filter["toefl"] = bson.M{"$lte": *f.Toefl}
	}
	if f.Ielts != nil {
		filter["ielts"] = bson.M{"$lte": *f.Ielts}
	}
	if f.AvailableSemester != nil {
		filter["availableSemester"] = *f.AvailableSemester
	}
	if f.HasDormitory != nil {
		filter["hasDormitory"] = *f.HasDormitory
	}
	if f.CountryID != nil {
		if oid, err := primitive.ObjectIDFromHex(*f.CountryID); err == nil {
			filter["countryId"] = oid
		} else {
			// An unknown country id matches nothing.
			filter["countryId"] = primitive.NilObjectID
		}
	} else if f.CountryIDs != nil {
		ids := make([]primitive.ObjectID, 0, len(f.CountryIDs))
		for _, s := range f.CountryIDs {
			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				ids = append(ids, oid)
			}
		}
		filter["countryId"] = bson.M{"$in": ids}
	}
	return filter
}

// schoolSort orders by the requested rank dimension. Schools missing the
// field get a sentinel so they sort last in either direction; _id breaks ties
// so pages stay stable.
func schoolSort(mode string) []bson.D {
	field, fallback, dir := "qsRank", domain.QsRankMissing, 1
	if mode == domain.SortPersonnel {
		field, fallback, dir = "personnel", domain.PersonnelMissing, -1
	}
	return []bson.D{
		{{Key: "$addFields", Value: bson.M{
			"sortKey": bson.M{"$ifNull": []any{"$" + field, fallback}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "sortKey", Value: dir}, {Key: "_id", Value: 1}}}},
	}
}

func schoolLookups() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{"from": colCountries, "localField": "countryId", "foreignField": "_id", "as": "country"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$country", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{"from": colContinents, "localField": "country.continentId", "foreignField": "_id", "as": "continent"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$continent", "preserveNullAndEmptyArrays": true}}},
	}
}

func (r *SchoolRepo) MatchIDs(ctx context.Context, f domain.SchoolFilter) ([]string, error) {
	cur, err := r.schools.Find(ctx, schoolMatch(f),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("match schools: %w", err)
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

func (r *SchoolRepo) Count(ctx context.Context, f domain.SchoolFilter) (int64, error) {
	return r.schools.CountDocuments(ctx, schoolMatch(f))
}

func (r *SchoolRepo) List(ctx context.Context, f domain.SchoolFilter, sort string, skip, limit int64) ([]domain.SchoolView, error) {
	pipeline := []bson.D{
		{{Key: "$match", Value: schoolMatch(f)}},
	}
	pipeline = append(pipeline, schoolSort(sort)...)
	pipeline = append(pipeline,
		bson.D{{Key: "$skip", Value: skip}},
		bson.D{{Key: "$limit", Value: limit}},
	)
	pipeline = append(pipeline, schoolLookups()...)

	cur, err := r.schools.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer cur.Close(ctx)

	var rows []schoolJoined
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.SchoolView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *SchoolRepo) FindByID(ctx context.Context, id string) (*domain.SchoolView, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: bson.M{"_id": oid}}},
	}
	pipeline = append(pipeline, schoolLookups()...)

	cur, err := r.schools.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find school: %w", err)
	}
	defer cur.Close(ctx)

	var rows []schoolJoined
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	v := rows[0].toDomain()
	return &v, nil
}

// Locations lists the distinct country/continent pairs schools exist in,
// for the filter dropdowns.
func (r *SchoolRepo) Locations(ctx context.Context) ([]domain.Location, error) {
	pipeline := []bson.D{
		{{Key: "$group", Value: bson.M{"_id": "$countryId"}}},
		{{Key: "$lookup", Value: bson.M{"from": colCountries, "localField": "_id", "foreignField": "_id", "as": "country"}}},
		{{Key: "$unwind", Value: "$country"}},
		{{Key: "$lookup", Value: bson.M{"from": colContinents, "localField": "country.continentId", "foreignField": "_id", "as": "continent"}}},
		{{Key: "$unwind", Value: "$continent"}},
		{{Key: "$project", Value: bson.M{
			"_id":       0,
			"country":   "$country.name",
			"continent": "$continent.name",
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "continent", Value: 1}, {Key: "country", Value: 1}}}},
	}

	cur, err := r.schools.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("school locations: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Location
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert stores a school keyed by name, used by the seeder.
func (r *SchoolRepo) Upsert(ctx context.Context, s domain.School) error {
	countryID, err := primitive.ObjectIDFromHex(s.CountryID)
	if err != nil {
		return domain.ErrInvalidID
	}

	now := time.Now().UTC()
	set := bson.M{
		"countryId":            countryID,
		"name":                 s.Name,
		"nameKor":              s.NameKor,
		"minCompletedSemester": s.MinCompletedSemester,
		"toefl":                s.Toefl,
		"ielts":                s.Ielts,
		"availableSemester":    s.AvailableSemester,
		"hasDormitory":         s.HasDormitory,
		"city":                 s.City,
		"homepageUrl":          s.HomepageURL,
		"languageRemarks":      s.LanguageRemarks,
		"updatedAt":            now,
	}
	if s.QsRank != nil {
		set["qsRank"] = *s.QsRank
	}
	if s.Personnel != nil {
		set["personnel"] = *s.Personnel
	}
	if s.MinGpa != nil {
		set["minGpa"] = *s.MinGpa
	}

	_, err = r.schools.UpdateOne(ctx,
		bson.M{"name": s.Name},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert school %q: %w", s.Name, err)
	}
	return nil
}
