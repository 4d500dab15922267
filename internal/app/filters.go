package app

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"kuex/internal/domain"
)

// Listing page size bounds.
const (
	DefaultLimit = 12
	MaxLimit     = 50
)

// Cache TTLs. The report-listing TTL is short because listings embed like
// counts; the schools metadata barely changes and keeps a day-long TTL.
const (
	TTLReports       = 30 * time.Minute
	TTLReportSchools = 24 * time.Hour
	TTLUserLikes     = 2 * time.Hour
	TTLReport        = time.Hour
	TTLSchool        = 2 * time.Hour
	TTLSchools       = 24 * time.Hour
)

// Cache key layout. The formats are part of the deployed interop surface and
// must not change shape.
func ReportsKey(page, limit int, f ReportFilters) string {
	return fmt.Sprintf("reports:%d:%d:%s", page, limit, f.Fingerprint())
}

func ReportSchoolsKey() string          { return "reports:schools:meta" }
func UserLikesKey(userID string) string { return fmt.Sprintf("user:%s:likes", userID) }
func ReportKey(id string) string        { return fmt.Sprintf("report:%s", id) }
func SchoolKey(id string) string        { return fmt.Sprintf("school:%s", id) }

func SchoolsKey(filterString string) string {
	if filterString == "" {
		filterString = "all"
	}
	return fmt.Sprintf("schools:%s", filterString)
}

// ReportFilters is the normalized optional-filter set of a report listing
// request. Pointer fields distinguish "absent" from empty values; absence is
// serialized as an explicit null in the fingerprint's canonical form.
type ReportFilters struct {
	Search               *string
	IncludeContent       bool
	SchoolsOnly          bool
	Sort                 string
	Continent            *string
	Country              *string
	SchoolID             *string
	Toefl                *string
	Ielts                *string
	MinCompletedSemester *string
	AvailableSemester    *string
	HasDormitory         *string
}

// pairs returns the filter set as name/value pairs. Values are raw strings,
// bools, or nil for absent filters.
func (f ReportFilters) pairs() map[string]any {
	str := func(p *string) any {
		if p == nil {
			return nil
		}
		return *p
	}
	return map[string]any{
		"search":               str(f.Search),
		"includeContent":       f.IncludeContent,
		"schoolsOnly":          f.SchoolsOnly,
		"sort":                 f.Sort,
		"continent":            str(f.Continent),
		"country":              str(f.Country),
		"schoolId":             str(f.SchoolID),
		"toefl":                str(f.Toefl),
		"ielts":                str(f.Ielts),
		"minCompletedSemester": str(f.MinCompletedSemester),
		"availableSemester":    str(f.AvailableSemester),
		"hasDormitory":         str(f.HasDormitory),
	}
}

// Fingerprint hashes the canonical key-ordered form of the filter set with
// FNV-1a and truncates to 12 hex characters. Collisions only cost a wrong
// cached page until the TTL runs out; the hash is a cache-efficiency
// tradeoff, not a correctness mechanism.
func (f ReportFilters) Fingerprint() string {
	pairs := f.pairs()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		vj, _ := json.Marshal(pairs[k])
		b.Write(kj)
		b.WriteByte(':')
		b.Write(vj)
	}
	b.WriteByte('}')

	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("%016x", h.Sum64())[:12]
}

// ListRequest is a parsed report-listing request.
type ListRequest struct {
	Page    int
	Limit   int
	Filters ReportFilters
}

// ParseListRequest normalizes raw query parameters: page is floored at 1 and
// limit clamped to [1,50] (default 12) instead of rejected.
func ParseListRequest(q url.Values) ListRequest {
	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 1 {
		page = n
	}
	limit := DefaultLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n != 0 {
		limit = clamp(n, 1, MaxLimit)
	}

	opt := func(name string) *string {
		if !q.Has(name) {
			return nil
		}
		v := q.Get(name)
		return &v
	}
	sortMode := q.Get("sort")
	if sortMode == "" {
		sortMode = domain.SortLatest
	}

	return ListRequest{
		Page:  page,
		Limit: limit,
		Filters: ReportFilters{
			Search:               opt("search"),
			IncludeContent:       q.Get("includeContent") == "true",
			SchoolsOnly:          q.Get("schoolsOnly") == "true",
			Sort:                 sortMode,
			Continent:            opt("continent"),
			Country:              opt("country"),
			SchoolID:             opt("schoolId"),
			Toefl:                opt("toefl"),
			Ielts:                opt("ielts"),
			MinCompletedSemester: opt("minCompletedSemester"),
			AvailableSemester:    opt("availableSemester"),
			HasDormitory:         opt("hasDormitory"),
		},
	}
}

// schoolFilter converts the raw attribute filters to a typed store filter.
// Unparseable numbers leave their constraint unset, matching how the raw
// values are coerced before querying.
func (f ReportFilters) schoolFilter() domain.SchoolFilter {
	var out domain.SchoolFilter
	if f.MinCompletedSemester != nil {
		if n, err := strconv.Atoi(*f.MinCompletedSemester); err == nil {
			out.MinCompletedSemester = &n
		}
	}
	if f.Toefl != nil {
		if n, err := strconv.Atoi(*f.Toefl); err == nil {
			out.Toefl = &n
		}
	}
	if f.Ielts != nil {
		if n, err := strconv.Atoi(*f.Ielts); err == nil {
			out.Ielts = &n
		}
	}
	if f.AvailableSemester != nil {
		v := *f.AvailableSemester
		out.AvailableSemester = &v
	}
	if f.HasDormitory != nil {
		v := *f.HasDormitory == "true"
		out.HasDormitory = &v
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
