package app_test

import (
	"net/url"
	"strings"
	"testing"

	"kuex/internal/app"
	"kuex/internal/domain"
)

func TestFingerprint_StableAndDistinct(t *testing.T) {
	a := app.ReportFilters{Search: ptr("paris"), Sort: domain.SortLatest, Toefl: ptr("80")}
	b := app.ReportFilters{Toefl: ptr("80"), Sort: domain.SortLatest, Search: ptr("paris")}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("same filters produced different fingerprints: %s vs %s", a.Fingerprint(), b.Fingerprint())
	}

	c := app.ReportFilters{Search: ptr("paris"), Sort: domain.SortLatest, Toefl: ptr("81")}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("different filters produced the same fingerprint")
	}
	if len(a.Fingerprint()) != 12 {
		t.Fatalf("fingerprint length = %d, want 12", len(a.Fingerprint()))
	}
}

func TestFingerprint_AbsentVsEmptyDiffer(t *testing.T) {
	absent := app.ReportFilters{Sort: domain.SortLatest}
	empty := app.ReportFilters{Sort: domain.SortLatest, Search: ptr("")}
	if absent.Fingerprint() == empty.Fingerprint() {
		t.Fatalf("absent and empty search should fingerprint differently")
	}
}

func TestCacheKeyLayout(t *testing.T) {
	f := app.ReportFilters{Sort: domain.SortLatest}
	key := app.ReportsKey(2, 12, f)
	if !strings.HasPrefix(key, "reports:2:12:") {
		t.Fatalf("reports key = %q", key)
	}
	if got := len(strings.TrimPrefix(key, "reports:2:12:")); got != 12 {
		t.Fatalf("hash suffix length = %d, want 12", got)
	}

	cases := map[string]string{
		app.ReportSchoolsKey():     "reports:schools:meta",
		app.UserLikesKey("u1"):     "user:u1:likes",
		app.ReportKey("abc"):       "report:abc",
		app.SchoolKey("abc"):       "school:abc",
		app.SchoolsKey(""):         "schools:all",
		app.SchoolsKey("limit=12"): "schools:limit=12",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("key = %q, want %q", got, want)
		}
	}
}

func TestParseListRequest_Clamping(t *testing.T) {
	q := url.Values{}
	q.Set("page", "-3")
	q.Set("limit", "500")
	req := app.ParseListRequest(q)
	if req.Page != 1 {
		t.Fatalf("page = %d, want 1", req.Page)
	}
	if req.Limit != app.MaxLimit {
		t.Fatalf("limit = %d, want %d", req.Limit, app.MaxLimit)
	}

	req = app.ParseListRequest(url.Values{})
	if req.Page != 1 || req.Limit != app.DefaultLimit {
		t.Fatalf("defaults = page %d limit %d", req.Page, req.Limit)
	}
	if req.Filters.Sort != domain.SortLatest {
		t.Fatalf("default sort = %q", req.Filters.Sort)
	}
	if req.Filters.Search != nil {
		t.Fatalf("absent search should stay nil")
	}
}

func TestParseSchoolListRequest_LimitQuirk(t *testing.T) {
	q := url.Values{}
	q.Set("limit", "9999")
	req := app.ParseSchoolListRequest(q)
	if req.Limit != 99999 {
		t.Fatalf("limit = %d, want 99999", req.Limit)
	}

	q.Set("limit", "60")
	req = app.ParseSchoolListRequest(q)
	if req.Limit != app.MaxLimit {
		t.Fatalf("limit = %d, want %d", req.Limit, app.MaxLimit)
	}
	if req.Sort != domain.SortQsRank {
		t.Fatalf("default sort = %q", req.Sort)
	}
}
