package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kuex/internal/domain"
)

// The free-text search matches these report fields, OR-combined.
var searchFields = []string{
	"hashtags",
	"content.applicationProcess",
	"content.visaProcess",
	"content.schoolEnvironment",
	"content.classes",
	"content.accommodationMeals",
	"content.facilitiesPrograms",
	"content.internationalOffice",
	"content.livingTips",
}

type ReportRepo struct {
	reports    *mongo.Collection
	schools    *mongo.Collection
	countries  *mongo.Collection
	continents *mongo.Collection
}

func NewReportRepo(db *mongo.Database) *ReportRepo {
	return &ReportRepo{
		reports:    db.Collection(colReports),
		schools:    db.Collection(colSchools),
		countries:  db.Collection(colCountries),
		continents: db.Collection(colContinents),
	}
}

func reportSort(mode string) bson.D {
	switch mode {
	case domain.SortLatest:
		return bson.D{{Key: "exchangeYear", Value: -1}, {Key: "exchangeSemester", Value: -1}, {Key: "createdAt", Value: -1}}
	case domain.SortOldest:
		return bson.D{{Key: "exchangeYear", Value: 1}, {Key: "exchangeSemester", Value: 1}, {Key: "createdAt", Value: 1}}
	case domain.SortPopular:
		return bson.D{{Key: "likeCount", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

func reportFilter(q domain.ReportQuery) (bson.M, error) {
	filter := bson.M{}
	if q.Search != nil {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(*q.Search), Options: "i"}
		or := make([]bson.M, 0, len(searchFields))
		for _, f := range searchFields {
			or = append(or, bson.M{f: re})
		}
		filter["$or"] = or
	}
	if q.SchoolID != nil {
		oid, err := primitive.ObjectIDFromHex(*q.SchoolID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		filter["schoolId"] = oid
	} else if q.SchoolIDs != nil {
		ids := make([]primitive.ObjectID, 0, len(q.SchoolIDs))
		for _, s := range q.SchoolIDs {
			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				ids = append(ids, oid)
			}
		}
		filter["schoolId"] = bson.M{"$in": ids}
	}
	return filter, nil
}

// reportLookups joins school, country and continent onto each report row.
func reportLookups() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{"from": colSchools, "localField": "schoolId", "foreignField": "_id", "as": "school"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$school", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{"from": colCountries, "localField": "school.countryId", "foreignField": "_id", "as": "country"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$country", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{"from": colContinents, "localField": "country.continentId", "foreignField": "_id", "as": "continent"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$continent", "preserveNullAndEmptyArrays": true}}},
	}
}

func (r *ReportRepo) Count(ctx context.Context, q domain.ReportQuery) (int64, error) {
	filter, err := reportFilter(q)
	if err != nil {
		return 0, err
	}
	return r.reports.CountDocuments(ctx, filter)
}

func (r *ReportRepo) List(ctx context.Context, q domain.ReportQuery) ([]domain.Report, error) {
	filter, err := reportFilter(q)
	if err != nil {
		return nil, err
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: reportSort(q.Sort)}},
		{{Key: "$skip", Value: q.Skip}},
		{{Key: "$limit", Value: q.Limit}},
	}
	pipeline = append(pipeline, reportLookups()...)

	cur, err := r.reports.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cur.Close(ctx)

	var rows []reportJoined
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// FindAndIncrementViews bumps the view count as part of the fetch itself and
// resolves the school reference explicitly afterwards.
func (r *ReportRepo) FindAndIncrementViews(ctx context.Context, id string) (*domain.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var doc reportDoc
	err = r.reports.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"viewCount": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	row := reportJoined{reportDoc: doc}
	var school schoolDoc
	if err := r.schools.FindOne(ctx, bson.M{"_id": doc.SchoolID}).Decode(&school); err == nil {
		row.School = &school
		var country countryDoc
		if err := r.countries.FindOne(ctx, bson.M{"_id": school.CountryID}).Decode(&country); err == nil {
			row.Country = &country
			var continent continentDoc
			if err := r.continents.FindOne(ctx, bson.M{"_id": country.ContinentID}).Decode(&continent); err == nil {
				row.Continent = &continent
			}
		}
	}

	rep := row.toDomain()
	return &rep, nil
}

func (r *ReportRepo) FindLikes(ctx context.Context, id string) (*domain.LikeState, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	var doc struct {
		LikedUsers []primitive.ObjectID `bson:"likedUsers"`
		LikeCount  int                  `bson:"likeCount"`
	}
	err = r.reports.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"likedUsers": 1, "likeCount": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	st := &domain.LikeState{LikeCount: doc.LikeCount}
	for _, u := range doc.LikedUsers {
		st.LikedUsers = append(st.LikedUsers, u.Hex())
	}
	return st, nil
}

func (r *ReportRepo) AddLike(ctx context.Context, reportID, userID string) (int, error) {
	return r.updateLike(ctx, reportID, userID, true)
}

func (r *ReportRepo) RemoveLike(ctx context.Context, reportID, userID string) (int, error) {
	return r.updateLike(ctx, reportID, userID, false)
}

// updateLike is a single atomic document update: set membership and counter
// change together, returning the post-update count.
func (r *ReportRepo) updateLike(ctx context.Context, reportID, userID string, add bool) (int, error) {
	rid, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, domain.ErrInvalidID
	}

	update := bson.M{
		"$pull": bson.M{"likedUsers": uid},
		"$inc":  bson.M{"likeCount": -1},
	}
	if add {
		update = bson.M{
			"$addToSet": bson.M{"likedUsers": uid},
			"$inc":      bson.M{"likeCount": 1},
		}
	}

	var doc struct {
		LikeCount int `bson:"likeCount"`
	}
	err = r.reports.FindOneAndUpdate(ctx,
		bson.M{"_id": rid},
		update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"likeCount": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return doc.LikeCount, nil
}

func (r *ReportRepo) ListLikedBy(ctx context.Context, userID string) ([]domain.Report, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: bson.M{"likedUsers": uid}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	pipeline = append(pipeline, reportLookups()...)

	cur, err := r.reports.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list liked reports: %w", err)
	}
	defer cur.Close(ctx)

	var rows []reportJoined
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DistinctSchools groups reports by school and joins names for the sidebar,
// sorted by continent, country, then school name.
func (r *ReportRepo) DistinctSchools(ctx context.Context) ([]domain.SchoolMeta, error) {
	pipeline := []bson.D{
		{{Key: "$group", Value: bson.M{"_id": "$schoolId"}}},
		{{Key: "$lookup", Value: bson.M{"from": colSchools, "localField": "_id", "foreignField": "_id", "as": "school"}}},
		{{Key: "$unwind", Value: "$school"}},
		{{Key: "$lookup", Value: bson.M{"from": colCountries, "localField": "school.countryId", "foreignField": "_id", "as": "country"}}},
		{{Key: "$unwind", Value: "$country"}},
		{{Key: "$lookup", Value: bson.M{"from": colContinents, "localField": "country.continentId", "foreignField": "_id", "as": "continent"}}},
		{{Key: "$unwind", Value: "$continent"}},
		{{Key: "$project", Value: bson.M{
			"_id":       0,
			"id":        "$school._id",
			"name":      "$school.name",
			"country":   "$country.name",
			"continent": "$continent.name",
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "continent", Value: 1}, {Key: "country", Value: 1}, {Key: "name", Value: 1}}}},
	}

	cur, err := r.reports.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("distinct report schools: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID        primitive.ObjectID `bson:"id"`
		Name      string             `bson:"name"`
		Country   string             `bson:"country"`
		Continent string             `bson:"continent"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.SchoolMeta, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SchoolMeta{
			ID:        row.ID.Hex(),
			Name:      row.Name,
			Country:   row.Country,
			Continent: row.Continent,
		})
	}
	return out, nil
}
