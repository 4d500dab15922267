//go:build integration || !unit

package mongostore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kuex/internal/domain"
	mongostore "kuex/internal/storage/mongo"
)

func pint(i int) *int { return &i }

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mongo: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	uri := fmt.Sprintf("mongodb://127.0.0.1:%s", resource.GetPort("27017/tcp"))
	var db *mongo.Database
	var disconnect func(context.Context) error
	if err := pool.Retry(func() error {
		var e error
		db, disconnect, e = mongostore.Connect(context.Background(), uri, "kuex_test")
		return e
	}); err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	t.Cleanup(func() { _ = disconnect(context.Background()) })
	return db
}

// seedGeo creates Europe/France and Asia/Japan plus three schools and returns
// school ids by name.
func seedGeo(t *testing.T, ctx context.Context, db *mongo.Database) map[string]string {
	t.Helper()
	geo := mongostore.NewGeoRepo(db)
	schools := mongostore.NewSchoolRepo(db)

	europe, err := geo.UpsertContinent(ctx, "Europe")
	if err != nil {
		t.Fatalf("upsert continent: %v", err)
	}
	asia, err := geo.UpsertContinent(ctx, "Asia")
	if err != nil {
		t.Fatalf("upsert continent: %v", err)
	}
	france, err := geo.UpsertCountry(ctx, "France", europe)
	if err != nil {
		t.Fatalf("upsert country: %v", err)
	}
	japan, err := geo.UpsertCountry(ctx, "Japan", asia)
	if err != nil {
		t.Fatalf("upsert country: %v", err)
	}

	seed := []domain.School{
		{CountryID: france, Name: "Sciences Po", City: "Paris", Toefl: 90, Ielts: 6,
			MinCompletedSemester: 2, AvailableSemester: domain.AvailabilityOneSemester,
			HasDormitory: true, QsRank: pint(50), Personnel: pint(4)},
		{CountryID: france, Name: "Sorbonne", City: "Paris", Toefl: 100, Ielts: 7,
			MinCompletedSemester: 4, AvailableSemester: domain.AvailabilityExtendable,
			QsRank: pint(30), Personnel: pint(2)},
		{CountryID: japan, Name: "Keio", City: "Tokyo", Toefl: 80, Ielts: 6,
			MinCompletedSemester: 2, AvailableSemester: domain.AvailabilityOneSemester,
			HasDormitory: true, Personnel: pint(6)}, // no qsRank on purpose
	}
	for _, s := range seed {
		if err := schools.Upsert(ctx, s); err != nil {
			t.Fatalf("upsert school %s: %v", s.Name, err)
		}
	}

	views, err := schools.List(ctx, domain.SchoolFilter{}, domain.SortQsRank, 0, 100)
	if err != nil {
		t.Fatalf("list schools: %v", err)
	}
	ids := map[string]string{}
	for _, v := range views {
		ids[v.Name] = v.ID
	}
	return ids
}

func insertReport(t *testing.T, ctx context.Context, db *mongo.Database, schoolID, livingTips string, createdAt time.Time, likeCount int, likedBy ...string) string {
	t.Helper()
	sid, err := primitive.ObjectIDFromHex(schoolID)
	if err != nil {
		t.Fatalf("school id: %v", err)
	}
	liked := make([]primitive.ObjectID, 0, len(likedBy))
	for _, u := range likedBy {
		uid, err := primitive.ObjectIDFromHex(u)
		if err != nil {
			t.Fatalf("user id: %v", err)
		}
		liked = append(liked, uid)
	}
	res, err := db.Collection("reports").InsertOne(ctx, bson.M{
		"schoolId":         sid,
		"exchangeYear":     2025,
		"exchangeSemester": domain.SemesterFirst,
		"content":          bson.M{"livingTips": livingTips},
		"hashtags":         []string{"#exchange"},
		"viewCount":        0,
		"likeCount":        likeCount,
		"likedUsers":       liked,
		"createdAt":        createdAt,
		"updatedAt":        createdAt,
	})
	if err != nil {
		t.Fatalf("insert report: %v", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex()
}

func TestMongoRepos_EndToEnd(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()

	schoolIDs := seedGeo(t, ctx, db)
	schools := mongostore.NewSchoolRepo(db)
	reports := mongostore.NewReportRepo(db)
	geo := mongostore.NewGeoRepo(db)

	base := time.Now().UTC().Truncate(time.Millisecond)
	userID := primitive.NewObjectID().Hex()
	r1 := insertReport(t, ctx, db, schoolIDs["Sciences Po"], "Bring a power ADAPTER", base.Add(-2*time.Hour), 1, userID)
	r2 := insertReport(t, ctx, db, schoolIDs["Sorbonne"], "Open a bank account early", base.Add(-time.Hour), 0)
	_ = insertReport(t, ctx, db, schoolIDs["Keio"], "Get a Suica card", base, 0)

	t.Run("school filter and sort sentinels", func(t *testing.T) {
		// toefl<=90 matches Sciences Po and Keio.
		toefl := 90
		ids, err := schools.MatchIDs(ctx, domain.SchoolFilter{Toefl: &toefl})
		if err != nil {
			t.Fatalf("match: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("matched %d schools, want 2", len(ids))
		}

		// qsRank asc puts the school without a rank last.
		views, err := schools.List(ctx, domain.SchoolFilter{}, domain.SortQsRank, 0, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(views) != 3 || views[0].Name != "Sorbonne" || views[2].Name != "Keio" {
			t.Fatalf("qsRank order: %v", names(views))
		}

		// personnel desc: Keio (6), Sciences Po (4), Sorbonne (2).
		views, err = schools.List(ctx, domain.SchoolFilter{}, domain.SortPersonnel, 0, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if views[0].Name != "Keio" || views[2].Name != "Sorbonne" {
			t.Fatalf("personnel order: %v", names(views))
		}
	})

	t.Run("geo resolution", func(t *testing.T) {
		europe, err := geo.FindContinent(ctx, "Europe")
		if err != nil {
			t.Fatalf("find continent: %v", err)
		}
		countryIDs, err := geo.CountryIDsByContinent(ctx, europe.ID)
		if err != nil {
			t.Fatalf("countries: %v", err)
		}
		if len(countryIDs) != 1 {
			t.Fatalf("europe countries = %d, want 1", len(countryIDs))
		}
		ids, err := schools.MatchIDs(ctx, domain.SchoolFilter{CountryIDs: countryIDs})
		if err != nil {
			t.Fatalf("match: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("european schools = %d, want 2", len(ids))
		}
	})

	t.Run("report search is case-insensitive", func(t *testing.T) {
		search := "adapter"
		rows, err := reports.List(ctx, domain.ReportQuery{Search: &search, Sort: domain.SortLatest, Limit: 10})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(rows) != 1 || rows[0].ID != r1 {
			t.Fatalf("search rows: %d", len(rows))
		}
		if !rows[0].School.Resolved() || rows[0].School.School.Country != "France" {
			t.Fatalf("school not resolved: %+v", rows[0].School)
		}
	})

	t.Run("list sorted and joined", func(t *testing.T) {
		rows, err := reports.List(ctx, domain.ReportQuery{Sort: domain.SortOldest, Limit: 10})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(rows) != 3 || rows[0].ID != r1 {
			t.Fatalf("oldest-first order broken")
		}

		total, err := reports.Count(ctx, domain.ReportQuery{})
		if err != nil || total != 3 {
			t.Fatalf("count = %d err = %v", total, err)
		}
	})

	t.Run("views and likes", func(t *testing.T) {
		rep, err := reports.FindAndIncrementViews(ctx, r2)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if rep.ViewCount != 1 {
			t.Fatalf("view count = %d", rep.ViewCount)
		}
		if !rep.School.Resolved() || rep.School.School.Continent != "Europe" {
			t.Fatalf("school not resolved: %+v", rep.School)
		}

		otherUser := primitive.NewObjectID().Hex()
		n, err := reports.AddLike(ctx, r2, otherUser)
		if err != nil || n != 1 {
			t.Fatalf("add like: n=%d err=%v", n, err)
		}
		st, err := reports.FindLikes(ctx, r2)
		if err != nil || !st.Has(otherUser) || st.LikeCount != 1 {
			t.Fatalf("like state: %+v err=%v", st, err)
		}
		n, err = reports.RemoveLike(ctx, r2, otherUser)
		if err != nil || n != 0 {
			t.Fatalf("remove like: n=%d err=%v", n, err)
		}

		liked, err := reports.ListLikedBy(ctx, userID)
		if err != nil || len(liked) != 1 || liked[0].ID != r1 {
			t.Fatalf("liked by: %d err=%v", len(liked), err)
		}
	})

	t.Run("distinct schools", func(t *testing.T) {
		metas, err := reports.DistinctSchools(ctx)
		if err != nil {
			t.Fatalf("distinct: %v", err)
		}
		if len(metas) != 3 {
			t.Fatalf("metas = %d, want 3", len(metas))
		}
		// sorted by continent, then country, then name
		if metas[0].Continent != "Asia" || metas[1].Name != "Sciences Po" {
			t.Fatalf("meta order: %+v", metas)
		}
	})

	t.Run("invalid ids", func(t *testing.T) {
		if _, err := reports.FindAndIncrementViews(ctx, "nope"); err != domain.ErrNotFound {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if _, err := reports.FindLikes(ctx, "nope"); err != domain.ErrInvalidID {
			t.Fatalf("err = %v, want ErrInvalidID", err)
		}
		if _, err := schools.FindByID(ctx, "nope"); err != domain.ErrNotFound {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestMongoUsersAndTokens(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()

	if err := mongostore.EnsureUserIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	users := mongostore.NewUserRepo(db)
	resets := mongostore.NewResetTokenRepo(db)

	u := &domain.User{Email: "a@korea.ac.kr", Name: "A", Password: "hash"}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("id not assigned")
	}
	if err := users.Create(ctx, &domain.User{Email: "a@korea.ac.kr", Name: "B", Password: "hash"}); err != domain.ErrEmailTaken {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}

	got, err := users.FindByEmailAndName(ctx, "a@korea.ac.kr", "A")
	if err != nil || got.ID != u.ID {
		t.Fatalf("find: %+v err=%v", got, err)
	}

	tok := &domain.PasswordResetToken{UserID: u.ID, Token: "tok1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := resets.Replace(ctx, tok); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// A second Replace discards the first token.
	tok2 := &domain.PasswordResetToken{UserID: u.ID, Token: "tok2", ExpiresAt: time.Now().Add(time.Hour)}
	if err := resets.Replace(ctx, tok2); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := resets.FindValid(ctx, "tok1"); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := resets.FindValid(ctx, "tok2"); err != nil {
		t.Fatalf("find valid: %v", err)
	}
	if err := resets.DeleteForUser(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := resets.FindValid(ctx, "tok2"); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	verifications := mongostore.NewVerificationRepo(db)
	v := &domain.EmailVerification{Email: "a@korea.ac.kr", Code: "111111", ExpiresAt: time.Now().Add(10 * time.Minute)}
	if err := verifications.Replace(ctx, v); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if v.CreatedAt.IsZero() {
		t.Fatalf("createdAt not stamped")
	}
	// The stamped creation time makes the record visible to the resend window.
	recent, err := verifications.FindRecent(ctx, "a@korea.ac.kr", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("find recent: %v", err)
	}
	if recent.Code != "111111" {
		t.Fatalf("code = %q, want 111111", recent.Code)
	}
	if _, err := verifications.FindRecent(ctx, "a@korea.ac.kr", time.Now().Add(time.Minute)); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Replace discards the previous code for the email.
	v2 := &domain.EmailVerification{Email: "a@korea.ac.kr", Code: "222222", ExpiresAt: time.Now().Add(10 * time.Minute)}
	if err := verifications.Replace(ctx, v2); err != nil {
		t.Fatalf("replace: %v", err)
	}
	recent, err = verifications.FindRecent(ctx, "a@korea.ac.kr", time.Now().Add(-time.Minute))
	if err != nil || recent.Code != "222222" {
		t.Fatalf("recent = %+v err=%v", recent, err)
	}
	if err := verifications.MarkVerified(ctx, v2.ID); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	if _, err := verifications.FindVerified(ctx, "a@korea.ac.kr"); err != nil {
		t.Fatalf("find verified: %v", err)
	}
}

func names(views []domain.SchoolView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Name)
	}
	return out
}
