package domain

import "time"

// Semester availability values as stored.
const (
	AvailabilityOneSemester = "one_semester"
	AvailabilityExtendable  = "extendable"
)

// School sort modes.
const (
	SortQsRank    = "qsRank"
	SortPersonnel = "personnel"
)

// Sentinels used so schools with a missing rank or capacity sort last.
const (
	QsRankMissing    = 999999
	PersonnelMissing = -1
)

type School struct {
	ID                   string
	CountryID            string
	Name                 string
	NameKor              string
	MinCompletedSemester int
	Toefl                int
	Ielts                int
	AvailableSemester    string
	HasDormitory         bool
	City                 string
	QsRank               *int
	Personnel            *int
	MinGpa               *float64
	HomepageURL          string
	LanguageRemarks      string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Country struct {
	ID          string
	Name        string
	ContinentID string
}

type Continent struct {
	ID   string
	Name string
}

// SchoolView is a school denormalized with its country and continent names.
type SchoolView struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	NameKor              string   `json:"nameKor,omitempty"`
	Continent            string   `json:"continent"`
	Country              string   `json:"country"`
	City                 string   `json:"city,omitempty"`
	MinCompletedSemester int      `json:"minCompletedSemester"`
	Toefl                int      `json:"toefl"`
	Ielts                int      `json:"ielts"`
	AvailableSemester    string   `json:"availableSemester"`
	HasDormitory         bool     `json:"hasDormitory"`
	QsRank               *int     `json:"qsRank,omitempty"`
	Personnel            *int     `json:"personnel,omitempty"`
	MinGpa               *float64 `json:"minGpa,omitempty"`
	HomepageURL          string   `json:"homepageUrl,omitempty"`
	LanguageRemarks      string   `json:"languageRemarks,omitempty"`
}

// Location is a country/continent pair for the region picker.
type Location struct {
	Country   string `json:"country"`
	Continent string `json:"continent"`
}

type SchoolPage struct {
	Data       []SchoolView `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// SchoolFilter is the school-attribute constraint set. All present fields are
// combined with AND. CountryIDs distinguishes nil (no geographic constraint)
// from an empty non-nil slice (constrain to no country, matches nothing).
type SchoolFilter struct {
	MinCompletedSemester *int    // gte
	Toefl                *int    // lte
	Ielts                *int    // lte
	AvailableSemester    *string // exact
	HasDormitory         *bool   // exact
	CountryID            *string
	CountryIDs           []string
}

func (f SchoolFilter) Empty() bool {
	return f.MinCompletedSemester == nil && f.Toefl == nil && f.Ielts == nil &&
		f.AvailableSemester == nil && f.HasDormitory == nil &&
		f.CountryID == nil && f.CountryIDs == nil
}

// ReportQuery is the structured store query produced by the filter normalizer.
// SchoolIDs follows the same nil vs empty convention as SchoolFilter.CountryIDs.
type ReportQuery struct {
	Search    *string
	SchoolID  *string
	SchoolIDs []string
	Sort      string
	Skip      int64
	Limit     int64
}
