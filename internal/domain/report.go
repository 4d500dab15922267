package domain

import "time"

// Exchange semester values as stored ("first" | "second").
const (
	SemesterFirst  = "first"
	SemesterSecond = "second"
)

// Report sort modes.
const (
	SortLatest  = "latest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// ReportContent holds the eight free-text sections of an exchange report.
type ReportContent struct {
	ApplicationProcess  string `bson:"applicationProcess,omitempty" json:"applicationProcess"`
	VisaProcess         string `bson:"visaProcess,omitempty" json:"visaProcess"`
	SchoolEnvironment   string `bson:"schoolEnvironment,omitempty" json:"schoolEnvironment"`
	Classes             string `bson:"classes,omitempty" json:"classes"`
	AccommodationMeals  string `bson:"accommodationMeals,omitempty" json:"accommodationMeals"`
	FacilitiesPrograms  string `bson:"facilitiesPrograms,omitempty" json:"facilitiesPrograms"`
	InternationalOffice string `bson:"internationalOffice,omitempty" json:"internationalOffice"`
	LivingTips          string `bson:"livingTips,omitempty" json:"livingTips"`
}

// SchoolRef is a report's school reference. Storage may return it as a bare id
// or fully resolved with country/continent names joined in; callers decide
// which shape they need and resolve explicitly instead of shape-checking.
type SchoolRef struct {
	ID     string
	School *SchoolView
}

func (r SchoolRef) Resolved() bool { return r.School != nil }

type Report struct {
	ID               string
	School           SchoolRef
	ExchangeYear     int
	ExchangeSemester string
	Content          ReportContent
	Hashtags         []string
	ViewCount        int
	LikeCount        int
	LikedUsers       []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LikedBy reports whether userID is in the report's liked-users set.
func (r *Report) LikedBy(userID string) bool {
	for _, u := range r.LikedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// LikeState is the point-in-time like information of one report.
type LikeState struct {
	LikedUsers []string
	LikeCount  int
}

func (s LikeState) Has(userID string) bool {
	for _, u := range s.LikedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// ---- read models (API shapes) ----

type SchoolSummary struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	NameKor              string `json:"nameKor,omitempty"`
	City                 string `json:"city"`
	Toefl                int    `json:"toefl"`
	Ielts                int    `json:"ielts"`
	MinCompletedSemester int    `json:"minCompletedSemester"`
	AvailableSemester    string `json:"availableSemester"`
	HasDormitory         bool   `json:"hasDormitory"`
	Country              string `json:"country"`
	Continent            string `json:"continent"`
}

type ReportListItem struct {
	ID               string         `json:"id"`
	Hashtags         []string       `json:"hashtags"`
	CreatedAt        time.Time      `json:"createdAt"`
	ExchangeYear     int            `json:"exchangeYear"`
	ExchangeSemester string         `json:"exchangeSemester"`
	ViewCount        int            `json:"viewCount"`
	LikeCount        int            `json:"likeCount"`
	IsLiked          bool           `json:"isLiked"`
	School           SchoolSummary  `json:"school"`
	Content          *ReportContent `json:"content,omitempty"`
}

type ReportDetail struct {
	ID               string        `json:"id"`
	School           SchoolSummary `json:"school"`
	ExchangeYear     int           `json:"exchangeYear"`
	ExchangeSemester string        `json:"exchangeSemester"`
	Content          ReportContent `json:"content"`
	Hashtags         []string      `json:"hashtags"`
	ViewCount        int           `json:"viewCount"`
	LikeCount        int           `json:"likeCount"`
	IsLiked          bool          `json:"isLiked"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type LikeResult struct {
	Success   bool `json:"success"`
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}

// SchoolMeta is the schools-only summary row used by the filter sidebar.
type SchoolMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Continent string `json:"continent"`
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// NewPagination derives the page metadata; the fields are never stored
// independently of totalItems/page/limit.
func NewPagination(page, limit int, totalItems int64) Pagination {
	totalPages := int((totalItems + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   totalItems,
		ItemsPerPage: limit,
		HasNextPage:  int64(page)*int64(limit) < totalItems,
		HasPrevPage:  page > 1,
	}
}

type ReportPage struct {
	Data       []ReportListItem `json:"data"`
	Pagination Pagination       `json:"pagination"`
}
