//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	server "kuex/internal/adapters/http_server"
	"kuex/internal/adapters/mail"
	redisad "kuex/internal/adapters/redis"
	"kuex/internal/app"
	"kuex/internal/domain"
	mongostore "kuex/internal/storage/mongo"
)

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
		db, disconnect, e = mongostore.Connect(context.Background(), uri, "kuex_e2e")
		return e
	}); err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	t.Cleanup(func() { _ = disconnect(context.Background()) })
	return db
}

func newAPI(t *testing.T, db *mongo.Database) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redisad.NewFromClient(client)

	reports := mongostore.NewReportRepo(db)
	schools := mongostore.NewSchoolRepo(db)
	geo := mongostore.NewGeoRepo(db)
	users := mongostore.NewUserRepo(db)
	verifications := mongostore.NewVerificationRepo(db)
	resetTokens := mongostore.NewResetTokenRepo(db)

	// no SMTP credentials configured, so auth flows return debug payloads
	mailer := mail.New("localhost", 587, "", "", "KU:EX", 2)
	tokens := app.NewTokens("e2e-secret", time.Hour)

	handlers := &server.Handlers{
		Reports:   app.NewReportService(reports, schools, geo, cache),
		Schools:   app.NewSchoolService(schools, geo, cache),
		Auth:      app.NewAuthService(users, verifications, resetTokens, mailer, tokens, "korea.ac.kr", true),
		Mypage:    app.NewMypageService(users, reports),
		PublicURL: "http://localhost:3000",
	}
	srv := server.New()
	srv.MountHandlers(handlers, tokens)

	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func seed(t *testing.T, db *mongo.Database) (reportID string) {
	t.Helper()
	ctx := context.Background()
	geo := mongostore.NewGeoRepo(db)
	schools := mongostore.NewSchoolRepo(db)

	europe, err := geo.UpsertContinent(ctx, "Europe")
	if err != nil {
		t.Fatalf("continent: %v", err)
	}
	france, err := geo.UpsertCountry(ctx, "France", europe)
	if err != nil {
		t.Fatalf("country: %v", err)
	}
	qs := 50
	if err := schools.Upsert(ctx, domain.School{
		CountryID: france, Name: "Sciences Po", City: "Paris",
		Toefl: 90, Ielts: 6, MinCompletedSemester: 2,
		AvailableSemester: domain.AvailabilityOneSemester, HasDormitory: true,
		QsRank: &qs,
	}); err != nil {
		t.Fatalf("school: %v", err)
	}
	views, err := schools.List(ctx, domain.SchoolFilter{}, domain.SortQsRank, 0, 10)
	if err != nil || len(views) != 1 {
		t.Fatalf("list schools: %d err=%v", len(views), err)
	}
	sid, err := primitive.ObjectIDFromHex(views[0].ID)
	if err != nil {
		t.Fatalf("school id: %v", err)
	}

	now := time.Now().UTC()
	res, err := db.Collection("reports").InsertOne(ctx, bson.M{
		"schoolId":         sid,
		"exchangeYear":     2025,
		"exchangeSemester": domain.SemesterFirst,
		"content":          bson.M{"livingTips": "Bring a power adapter"},
		"hashtags":         []string{"#paris"},
		"viewCount":        0,
		"likeCount":        0,
		"likedUsers":       []primitive.ObjectID{},
		"createdAt":        now,
		"updatedAt":        now,
	})
	if err != nil {
		t.Fatalf("insert report: %v", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex()
}

func postJSON(t *testing.T, ts *httptest.Server, path, token string, body any, out any) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req, out)
}

func getJSON(t *testing.T, ts *httptest.Server, path, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req, out)
}

func do(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", req.URL.Path, err)
		}
	}
	return res.StatusCode
}

func TestHTTP_EndToEnd(t *testing.T) {
	db := startMongo(t)
	reportID := seed(t, db)
	ts := newAPI(t, db)

	// ---- register and log in over the API ----
	var codeRes struct {
		DebugCode string `json:"debugCode"`
	}
	if st := postJSON(t, ts, "/v1/auth/email/request", "", map[string]string{"email": "student@korea.ac.kr"}, &codeRes); st != http.StatusOK {
		t.Fatalf("email request status %d", st)
	}
	if len(codeRes.DebugCode) != 6 {
		t.Fatalf("debug code %q", codeRes.DebugCode)
	}
	if st := postJSON(t, ts, "/v1/auth/email/verify", "", map[string]string{
		"email": "student@korea.ac.kr", "code": codeRes.DebugCode,
	}, nil); st != http.StatusOK {
		t.Fatalf("verify status %d", st)
	}
	if st := postJSON(t, ts, "/v1/auth/register", "", map[string]string{
		"email": "student@korea.ac.kr", "name": "Student", "password": "long password",
	}, nil); st != http.StatusCreated {
		t.Fatalf("register status %d", st)
	}

	var loginRes struct {
		Token string `json:"token"`
	}
	if st := postJSON(t, ts, "/v1/auth/login", "", map[string]string{
		"email": "student@korea.ac.kr", "password": "long password",
	}, &loginRes); st != http.StatusOK {
		t.Fatalf("login status %d", st)
	}
	if loginRes.Token == "" {
		t.Fatalf("empty token")
	}

	// ---- listing, detail, like round trip ----
	var page domain.ReportPage
	if st := getJSON(t, ts, "/v1/reports", "", &page); st != http.StatusOK {
		t.Fatalf("list status %d", st)
	}
	if len(page.Data) != 1 || page.Data[0].ID != reportID || page.Data[0].IsLiked {
		t.Fatalf("listing: %+v", page.Data)
	}
	if page.Data[0].School.Country != "France" {
		t.Fatalf("school join: %+v", page.Data[0].School)
	}
	if page.Pagination.TotalItems != 1 || page.Pagination.HasNextPage {
		t.Fatalf("pagination: %+v", page.Pagination)
	}

	var like domain.LikeResult
	if st := postJSON(t, ts, "/v1/reports/"+reportID+"/like", loginRes.Token, nil, &like); st != http.StatusOK {
		t.Fatalf("like status %d", st)
	}
	if !like.Success || !like.IsLiked || like.LikeCount != 1 {
		t.Fatalf("like: %+v", like)
	}

	// anonymous like attempts are rejected
	if st := postJSON(t, ts, "/v1/reports/"+reportID+"/like", "", nil, nil); st != http.StatusUnauthorized {
		t.Fatalf("anonymous like status %d", st)
	}

	// authenticated listing reflects the like; anonymous does not
	if st := getJSON(t, ts, "/v1/reports", loginRes.Token, &page); st != http.StatusOK {
		t.Fatalf("list status %d", st)
	}
	if !page.Data[0].IsLiked || page.Data[0].LikeCount != 1 {
		t.Fatalf("listing after like: %+v", page.Data[0])
	}
	if st := getJSON(t, ts, "/v1/reports", "", &page); st != http.StatusOK {
		t.Fatalf("list status %d", st)
	}
	if page.Data[0].IsLiked {
		t.Fatalf("anonymous listing carries a like flag")
	}

	var detail domain.ReportDetail
	if st := getJSON(t, ts, "/v1/reports/"+reportID, loginRes.Token, &detail); st != http.StatusOK {
		t.Fatalf("detail status %d", st)
	}
	if detail.ViewCount != 1 || !detail.IsLiked {
		t.Fatalf("detail: %+v", detail)
	}

	// ---- schools and mypage ----
	var schoolPage domain.SchoolPage
	if st := getJSON(t, ts, "/v1/schools", "", &schoolPage); st != http.StatusOK {
		t.Fatalf("schools status %d", st)
	}
	if len(schoolPage.Data) != 1 || schoolPage.Data[0].Continent != "Europe" {
		t.Fatalf("schools: %+v", schoolPage.Data)
	}

	var mypage domain.MypageData
	if st := getJSON(t, ts, "/v1/mypage", loginRes.Token, &mypage); st != http.StatusOK {
		t.Fatalf("mypage status %d", st)
	}
	if mypage.SavedReportsCount != 1 || !mypage.SavedReports[0].IsLiked {
		t.Fatalf("mypage: %+v", mypage)
	}
	if st := getJSON(t, ts, "/v1/mypage", "", nil); st != http.StatusUnauthorized {
		t.Fatalf("anonymous mypage status %d", st)
	}

	// unknown report id
	if st := getJSON(t, ts, "/v1/reports/"+primitive.NewObjectID().Hex(), "", nil); st != http.StatusNotFound {
		t.Fatalf("missing report status %d", st)
	}
}
