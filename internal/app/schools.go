package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"kuex/internal/domain"
)

// SchoolService lists and fetches partner schools. Listings and details are
// cached read-through; schools never change within this layer, so nothing
// here invalidates.
type SchoolService struct {
	schools domain.SchoolRepository
	geo     domain.GeoRepository
	cache   domain.Cache
}

func NewSchoolService(s domain.SchoolRepository, g domain.GeoRepository, c domain.Cache) *SchoolService {
	return &SchoolService{schools: s, geo: g, cache: c}
}

// SchoolListRequest is a parsed school-listing request.
type SchoolListRequest struct {
	Page      int
	Limit     int
	Sort      string
	Continent *string
	Country   *string
	Filter    domain.SchoolFilter

	// raw normalized filters, for the cache key
	normal string
}

// ParseSchoolListRequest normalizes raw query parameters. A requested limit
// of 9999 or more means "all schools" and bypasses the usual [1,50] clamp.
func ParseSchoolListRequest(q url.Values) SchoolListRequest {
	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 1 {
		page = n
	}
	limit := DefaultLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n != 0 {
		if n >= 9999 {
			limit = 99999
		} else {
			limit = clamp(n, 1, MaxLimit)
		}
	}

	req := SchoolListRequest{Page: page, Limit: limit, Sort: q.Get("sort")}
	if req.Sort == "" {
		req.Sort = domain.SortQsRank
	}

	var f domain.SchoolFilter
	if q.Has("minCompletedSemester") {
		if n, err := strconv.Atoi(q.Get("minCompletedSemester")); err == nil {
			f.MinCompletedSemester = &n
		}
	}
	if q.Has("toefl") {
		if n, err := strconv.Atoi(q.Get("toefl")); err == nil {
			f.Toefl = &n
		}
	}
	if q.Has("ielts") {
		if n, err := strconv.Atoi(q.Get("ielts")); err == nil {
			f.Ielts = &n
		}
	}
	if q.Has("availableSemester") {
		v := q.Get("availableSemester")
		f.AvailableSemester = &v
	}
	if q.Has("hasDormitory") {
		v := q.Get("hasDormitory") == "true"
		f.HasDormitory = &v
	}
	req.Filter = f

	if q.Has("continent") {
		v := q.Get("continent")
		req.Continent = &v
	}
	if q.Has("country") {
		v := q.Get("country")
		req.Country = &v
	}

	req.normal = normalizeQuery(q)
	return req
}

// normalizeQuery renders the listing-relevant parameters as a sorted
// k=v&k=v string; an empty set maps to the "all" cache key.
func normalizeQuery(q url.Values) string {
	keys := []string{
		"page", "limit", "sort", "continent", "country",
		"minCompletedSemester", "toefl", "ielts", "availableSemester", "hasDormitory",
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if q.Has(k) {
			parts = append(parts, fmt.Sprintf("%s=%s", k, q.Get(k)))
		}
	}
	return strings.Join(parts, "&")
}

// ListSchools serves one filtered, sorted page of schools, cache-aside under
// the normalized filter string.
func (s *SchoolService) ListSchools(ctx context.Context, req SchoolListRequest) (domain.SchoolPage, error) {
	key := SchoolsKey(req.normal)
	var page domain.SchoolPage
	if ok, err := s.cache.Get(ctx, key, &page); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("school cache read failed")
	} else if ok {
		return page, nil
	}

	f := req.Filter
	if req.Country != nil && *req.Country != "" {
		c, err := s.geo.FindCountry(ctx, *req.Country)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.SchoolPage{}, err
		}
		if c != nil {
			f.CountryID = &c.ID
		}
	} else if req.Continent != nil && *req.Continent != "" {
		cont, err := s.geo.FindContinent(ctx, *req.Continent)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.SchoolPage{}, err
		}
		if cont != nil {
			ids, err := s.geo.CountryIDsByContinent(ctx, cont.ID)
			if err != nil {
				return domain.SchoolPage{}, err
			}
			if ids == nil {
				ids = []string{}
			}
			f.CountryIDs = ids
		}
	}

	total, err := s.schools.Count(ctx, f)
	if err != nil {
		return domain.SchoolPage{}, err
	}
	skip := int64(req.Page-1) * int64(req.Limit)
	views, err := s.schools.List(ctx, f, req.Sort, skip, int64(req.Limit))
	if err != nil {
		return domain.SchoolPage{}, err
	}
	if views == nil {
		views = []domain.SchoolView{}
	}

	page = domain.SchoolPage{
		Data:       views,
		Pagination: domain.NewPagination(req.Page, req.Limit, total),
	}
	if err := s.cache.Set(ctx, key, page, TTLSchools); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("school cache write failed")
	}
	return page, nil
}

// GetSchool fetches one school by id, cache-aside.
func (s *SchoolService) GetSchool(ctx context.Context, id string) (*domain.SchoolView, error) {
	key := SchoolKey(id)
	var view domain.SchoolView
	if ok, err := s.cache.Get(ctx, key, &view); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("school cache read failed")
	} else if ok {
		return &view, nil
	}

	sv, err := s.schools.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, sv, TTLSchool); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("school cache write failed")
	}
	return sv, nil
}

// Locations lists the distinct country/continent pairs schools span.
func (s *SchoolService) Locations(ctx context.Context) ([]domain.Location, error) {
	return s.schools.Locations(ctx)
}
