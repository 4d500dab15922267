package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"kuex/internal/domain"
)

// ReportService is the report listing / like core: a filter-normalizing query
// builder in front of a cache-aside layer that overlays per-user like state
// at read time.
type ReportService struct {
	reports domain.ReportRepository
	schools domain.SchoolRepository
	geo     domain.GeoRepository
	cache   domain.Cache
}

func NewReportService(r domain.ReportRepository, s domain.SchoolRepository, g domain.GeoRepository, c domain.Cache) *ReportService {
	return &ReportService{reports: r, schools: s, geo: g, cache: c}
}

// ListReports serves one filtered, sorted listing page. The cached base page
// is user-agnostic; the requesting user's like flags are overlaid on every
// read. Cache failures downgrade to misses and never fail the request.
func (s *ReportService) ListReports(ctx context.Context, req ListRequest, userID string) (domain.ReportPage, error) {
	key := ReportsKey(req.Page, req.Limit, req.Filters)

	var base domain.ReportPage
	if ok, err := s.cache.Get(ctx, key, &base); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("listing cache read failed")
	} else if ok {
		s.overlayLikes(ctx, base.Data, userID)
		return base, nil
	}

	q, empty, err := s.buildQuery(ctx, req)
	if err != nil {
		return domain.ReportPage{}, err
	}
	if empty {
		// Attribute filters matched zero schools: a well-formed empty page,
		// returned without touching the report collection.
		return domain.ReportPage{
			Data:       []domain.ReportListItem{},
			Pagination: domain.Pagination{CurrentPage: req.Page, ItemsPerPage: req.Limit},
		}, nil
	}

	total, err := s.reports.Count(ctx, q)
	if err != nil {
		return domain.ReportPage{}, err
	}
	reports, err := s.reports.List(ctx, q)
	if err != nil {
		return domain.ReportPage{}, err
	}

	base = domain.ReportPage{
		Data:       make([]domain.ReportListItem, 0, len(reports)),
		Pagination: domain.NewPagination(req.Page, req.Limit, total),
	}
	for _, r := range reports {
		base.Data = append(base.Data, reportListItem(r, req.Filters.IncludeContent))
	}

	// Store the page before any like flags are applied so every user can
	// share the same entry.
	if err := s.cache.Set(ctx, key, base, TTLReports); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("listing cache write failed")
	}

	out := copyPage(base)
	if userID != "" {
		liked := make([]string, 0, len(reports))
		for i, r := range reports {
			if r.LikedBy(userID) {
				out.Data[i].IsLiked = true
				liked = append(liked, r.ID)
			}
		}
		// Warm the user's like set from this page, best-effort.
		if len(liked) > 0 {
			if err := s.cache.SAdd(ctx, UserLikesKey(userID), TTLUserLikes, liked...); err != nil {
				log.Warn().Err(err).Str("user", userID).Msg("like set warm-up failed")
			}
		}
	}
	return out, nil
}

// ReportSchools returns the distinct schools reports reference, for the
// filter sidebar. A single fixed key, long TTL, untouched by like writes.
func (s *ReportService) ReportSchools(ctx context.Context) ([]domain.SchoolMeta, error) {
	key := ReportSchoolsKey()
	var metas []domain.SchoolMeta
	if ok, err := s.cache.Get(ctx, key, &metas); err != nil {
		log.Warn().Err(err).Msg("schools meta cache read failed")
	} else if ok {
		return metas, nil
	}
	metas, err := s.reports.DistinctSchools(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, metas, TTLReportSchools); err != nil {
		log.Warn().Err(err).Msg("schools meta cache write failed")
	}
	return metas, nil
}

// GetReport fetches one report, incrementing its view count as part of the
// same atomic read. Details are never cached so the count always advances.
func (s *ReportService) GetReport(ctx context.Context, id, userID string) (*domain.ReportDetail, error) {
	r, err := s.reports.FindAndIncrementViews(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &domain.ReportDetail{
		ID:               r.ID,
		School:           schoolSummary(r.School),
		ExchangeYear:     r.ExchangeYear,
		ExchangeSemester: r.ExchangeSemester,
		Content:          r.Content,
		Hashtags:         r.Hashtags,
		ViewCount:        r.ViewCount,
		LikeCount:        r.LikeCount,
		IsLiked:          userID != "" && r.LikedBy(userID),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	return d, nil
}

// ToggleLike flips the user's like on a report. The add-vs-remove decision is
// a point-in-time read; the update itself is a single atomic document update.
// Afterwards every fingerprinted listing entry is invalidated, because any
// cached page may embed the stale like count. The schools-only cache keeps
// its entry.
func (s *ReportService) ToggleLike(ctx context.Context, reportID, userID string) (domain.LikeResult, error) {
	if userID == "" {
		return domain.LikeResult{}, domain.ErrUnauthorized
	}

	st, err := s.reports.FindLikes(ctx, reportID)
	if err != nil {
		return domain.LikeResult{}, err
	}

	liked := st.Has(userID)
	var count int
	if liked {
		count, err = s.reports.RemoveLike(ctx, reportID, userID)
	} else {
		count, err = s.reports.AddLike(ctx, reportID, userID)
	}
	if err != nil {
		return domain.LikeResult{}, err
	}

	likesKey := UserLikesKey(userID)
	if liked {
		if err := s.cache.SRem(ctx, likesKey, reportID); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("like set update failed")
		}
	} else {
		if err := s.cache.SAdd(ctx, likesKey, TTLUserLikes, reportID); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("like set update failed")
		}
	}

	if n, err := s.cache.DelPattern(ctx, "reports:*", ReportSchoolsKey()); err != nil {
		log.Warn().Err(err).Msg("listing cache invalidation failed")
	} else if n > 0 {
		log.Info().Int("keys", n).Msg("listing cache invalidated")
	}

	return domain.LikeResult{Success: true, IsLiked: !liked, LikeCount: count}, nil
}

// LikeStatus reports whether the user likes a report. The cached like set is
// preferred when present; the like count is always read fresh from the store.
func (s *ReportService) LikeStatus(ctx context.Context, reportID, userID string) (domain.LikeResult, error) {
	if userID == "" {
		return domain.LikeResult{}, domain.ErrUnauthorized
	}

	st, err := s.reports.FindLikes(ctx, reportID)
	if err != nil {
		return domain.LikeResult{}, err
	}

	isLiked := st.Has(userID)
	if members, err := s.cache.SMembers(ctx, UserLikesKey(userID)); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("like set read failed")
	} else if len(members) > 0 {
		isLiked = false
		for _, m := range members {
			if m == reportID {
				isLiked = true
				break
			}
		}
	}

	return domain.LikeResult{Success: true, IsLiked: isLiked, LikeCount: st.LikeCount}, nil
}

// buildQuery resolves the filter set into a structured store query. The
// second return is true when attribute filters matched zero schools and the
// whole result is defined to be an empty page.
func (s *ReportService) buildQuery(ctx context.Context, req ListRequest) (domain.ReportQuery, bool, error) {
	f := req.Filters
	q := domain.ReportQuery{
		Sort:  f.Sort,
		Skip:  int64(req.Page-1) * int64(req.Limit),
		Limit: int64(req.Limit),
	}
	if f.Search != nil {
		if t := strings.TrimSpace(*f.Search); t != "" {
			q.Search = &t
		}
	}

	// A direct school id overrides every geographic and attribute filter.
	if f.SchoolID != nil && *f.SchoolID != "" {
		q.SchoolID = f.SchoolID
		return q, false, nil
	}

	sf := f.schoolFilter()
	if f.Country != nil && *f.Country != "" {
		c, err := s.geo.FindCountry(ctx, *f.Country)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return q, false, err
		}
		if c != nil {
			sf.CountryID = &c.ID
		}
	} else if f.Continent != nil && *f.Continent != "" {
		cont, err := s.geo.FindContinent(ctx, *f.Continent)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return q, false, err
		}
		if cont != nil {
			ids, err := s.geo.CountryIDsByContinent(ctx, cont.ID)
			if err != nil {
				return q, false, err
			}
			if ids == nil {
				// A continent with zero countries constrains to nothing.
				ids = []string{}
			}
			sf.CountryIDs = ids
		}
	}

	if !sf.Empty() {
		matched, err := s.schools.MatchIDs(ctx, sf)
		if err != nil {
			return q, false, err
		}
		if len(matched) == 0 {
			return q, true, nil
		}
		q.SchoolIDs = matched
	}
	return q, false, nil
}

func (s *ReportService) overlayLikes(ctx context.Context, items []domain.ReportListItem, userID string) {
	if userID == "" {
		for i := range items {
			items[i].IsLiked = false
		}
		return
	}
	members, err := s.cache.SMembers(ctx, UserLikesKey(userID))
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("like set read failed")
	}
	liked := make(map[string]struct{}, len(members))
	for _, m := range members {
		liked[m] = struct{}{}
	}
	for i := range items {
		_, ok := liked[items[i].ID]
		items[i].IsLiked = ok
	}
}

// copyPage clones the items slice so overlaying like flags never mutates the
// value that was handed to the cache.
func copyPage(in domain.ReportPage) domain.ReportPage {
	out := domain.ReportPage{Pagination: in.Pagination}
	if n := len(in.Data); n > 0 {
		out.Data = make([]domain.ReportListItem, n)
		copy(out.Data, in.Data)
	}
	return out
}
