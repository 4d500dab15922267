package app

import "kuex/internal/domain"

func schoolSummary(ref domain.SchoolRef) domain.SchoolSummary {
	out := domain.SchoolSummary{ID: ref.ID}
	if !ref.Resolved() {
		return out
	}
	sv := ref.School
	out.Name = sv.Name
	out.NameKor = sv.NameKor
	out.City = sv.City
	out.Toefl = sv.Toefl
	out.Ielts = sv.Ielts
	out.MinCompletedSemester = sv.MinCompletedSemester
	out.AvailableSemester = sv.AvailableSemester
	out.HasDormitory = sv.HasDormitory
	out.Country = sv.Country
	out.Continent = sv.Continent
	return out
}

// reportListItem builds the user-agnostic listing row; isLiked is overlaid by
// the caller. Content is only attached when the request asked for it.
func reportListItem(r domain.Report, includeContent bool) domain.ReportListItem {
	item := domain.ReportListItem{
		ID:               r.ID,
		Hashtags:         r.Hashtags,
		CreatedAt:        r.CreatedAt,
		ExchangeYear:     r.ExchangeYear,
		ExchangeSemester: r.ExchangeSemester,
		ViewCount:        r.ViewCount,
		LikeCount:        r.LikeCount,
		School:           schoolSummary(r.School),
	}
	if includeContent {
		c := r.Content
		item.Content = &c
	}
	return item
}
