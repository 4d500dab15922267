package app

import (
	"context"

	"kuex/internal/domain"
)

// MypageService assembles the authenticated user's profile together with
// every report they liked, newest exchange first.
type MypageService struct {
	users   domain.UserRepository
	reports domain.ReportRepository
}

func NewMypageService(u domain.UserRepository, r domain.ReportRepository) *MypageService {
	return &MypageService{users: u, reports: r}
}

func (s *MypageService) Mypage(ctx context.Context, userID string) (*domain.MypageData, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	liked, err := s.reports.ListLikedBy(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.ReportListItem, 0, len(liked))
	for _, r := range liked {
		// Drop rows whose school reference no longer resolves.
		if !r.School.Resolved() {
			continue
		}
		item := reportListItem(r, false)
		item.IsLiked = true
		items = append(items, item)
	}

	return &domain.MypageData{
		User:              u.Profile(),
		SavedReports:      items,
		SavedReportsCount: len(items),
	}, nil
}
