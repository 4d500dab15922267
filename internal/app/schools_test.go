package app_test

import (
	"context"
	"net/url"
	"testing"

	"kuex/internal/app"
	"kuex/internal/domain"
)

type fakeSchoolLister struct {
	fakeSchools
	views    []domain.SchoolView
	lastSort string
}

func (f *fakeSchoolLister) List(ctx context.Context, sf domain.SchoolFilter, sort string, skip, limit int64) ([]domain.SchoolView, error) {
	f.lastFilter = sf
	f.lastSort = sort
	if skip >= int64(len(f.views)) {
		return nil, nil
	}
	rows := f.views[skip:]
	if int64(len(rows)) > limit {
		rows = rows[:limit]
	}
	// return copied rows the way a real driver decodes fresh structs
	return append([]domain.SchoolView(nil), rows...), nil
}

func (f *fakeSchoolLister) Count(ctx context.Context, sf domain.SchoolFilter) (int64, error) {
	return int64(len(f.views)), nil
}

func (f *fakeSchoolLister) FindByID(ctx context.Context, id string) (*domain.SchoolView, error) {
	for _, v := range f.views {
		if v.ID == id {
			out := v
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func schoolListReq(params map[string]string) app.SchoolListRequest {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return app.ParseSchoolListRequest(q)
}

func TestListSchools_CacheMissThenHit(t *testing.T) {
	repo := &fakeSchoolLister{views: []domain.SchoolView{{ID: "s1", Name: "Uni A"}}}
	cache := &fakeCache{}
	svc := app.NewSchoolService(repo, &fakeGeo{}, cache)
	ctx := context.Background()

	page, err := svc.ListSchools(ctx, schoolListReq(nil))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].Name != "Uni A" {
		t.Fatalf("unexpected page: %+v", page.Data)
	}
	if repo.lastSort != domain.SortQsRank {
		t.Fatalf("default sort = %q", repo.lastSort)
	}

	// Mutate repo to prove the second read comes from cache.
	repo.views[0].Name = "SHOULD NOT SEE THIS"

	page2, err := svc.ListSchools(ctx, schoolListReq(nil))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if page2.Data[0].Name != "Uni A" {
		t.Fatalf("expected cached name, got %s", page2.Data[0].Name)
	}
}

func TestListSchools_DistinctFiltersDistinctKeys(t *testing.T) {
	repo := &fakeSchoolLister{views: []domain.SchoolView{{ID: "s1"}}}
	cache := &fakeCache{}
	svc := app.NewSchoolService(repo, &fakeGeo{}, cache)
	ctx := context.Background()

	if _, err := svc.ListSchools(ctx, schoolListReq(nil)); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := svc.ListSchools(ctx, schoolListReq(map[string]string{"toefl": "90"})); err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, ok := cache.store[app.SchoolsKey("")]; !ok {
		t.Fatalf("unfiltered listing should live under the all key")
	}
	if _, ok := cache.store[app.SchoolsKey("toefl=90")]; !ok {
		t.Fatalf("filtered listing key missing; stored keys: %v", keysOf(cache.store))
	}
}

func TestListSchools_CountryFilterResolved(t *testing.T) {
	repo := &fakeSchoolLister{views: []domain.SchoolView{{ID: "s1"}}}
	geo := &fakeGeo{countries: map[string]domain.Country{
		"France": {ID: "c-fr", Name: "France", ContinentID: "cont1"},
	}}
	svc := app.NewSchoolService(repo, geo, &fakeCache{})

	if _, err := svc.ListSchools(context.Background(), schoolListReq(map[string]string{"country": "France"})); err != nil {
		t.Fatalf("err: %v", err)
	}
	if repo.lastFilter.CountryID == nil || *repo.lastFilter.CountryID != "c-fr" {
		t.Fatalf("country filter: %+v", repo.lastFilter)
	}
}

func TestGetSchool_Cached(t *testing.T) {
	repo := &fakeSchoolLister{views: []domain.SchoolView{{ID: "s1", Name: "Uni A"}}}
	cache := &fakeCache{}
	svc := app.NewSchoolService(repo, &fakeGeo{}, cache)
	ctx := context.Background()

	v, err := svc.GetSchool(ctx, "s1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if v.Name != "Uni A" {
		t.Fatalf("unexpected school: %+v", v)
	}

	repo.views[0].Name = "SHOULD NOT SEE THIS"
	v2, err := svc.GetSchool(ctx, "s1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if v2.Name != "Uni A" {
		t.Fatalf("expected cached school, got %s", v2.Name)
	}
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
