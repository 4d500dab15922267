package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"kuex/internal/domain"
)

type contentDoc struct {
	ApplicationProcess  string `bson:"applicationProcess,omitempty"`
	VisaProcess         string `bson:"visaProcess,omitempty"`
	SchoolEnvironment   string `bson:"schoolEnvironment,omitempty"`
	Classes             string `bson:"classes,omitempty"`
	AccommodationMeals  string `bson:"accommodationMeals,omitempty"`
	FacilitiesPrograms  string `bson:"facilitiesPrograms,omitempty"`
	InternationalOffice string `bson:"internationalOffice,omitempty"`
	LivingTips          string `bson:"livingTips,omitempty"`
}

func (c contentDoc) toDomain() domain.ReportContent {
	return domain.ReportContent(c)
}

type reportDoc struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty"`
	SchoolID         primitive.ObjectID   `bson:"schoolId"`
	ExchangeYear     int                  `bson:"exchangeYear"`
	ExchangeSemester string               `bson:"exchangeSemester"`
	Content          contentDoc           `bson:"content"`
	Hashtags         []string             `bson:"hashtags"`
	ViewCount        int                  `bson:"viewCount"`
	LikeCount        int                  `bson:"likeCount"`
	LikedUsers       []primitive.ObjectID `bson:"likedUsers"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

type schoolDoc struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	CountryID            primitive.ObjectID `bson:"countryId"`
	Name                 string             `bson:"name"`
	NameKor              string             `bson:"nameKor,omitempty"`
	MinCompletedSemester int                `bson:"minCompletedSemester"`
	Toefl                int                `bson:"toefl"`
	Ielts                int                `bson:"ielts"`
	AvailableSemester    string             `bson:"availableSemester"`
	HasDormitory         bool               `bson:"hasDormitory"`
	City                 string             `bson:"city,omitempty"`
	QsRank               *int               `bson:"qsRank,omitempty"`
	Personnel            *int               `bson:"personnel,omitempty"`
	MinGpa               *float64           `bson:"minGpa,omitempty"`
	HomepageURL          string             `bson:"homepageUrl,omitempty"`
	LanguageRemarks      string             `bson:"languageRemarks,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt"`
}

type countryDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	ContinentID primitive.ObjectID `bson:"continentId"`
}

type continentDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (u userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:        u.ID.Hex(),
		Email:     u.Email,
		Name:      u.Name,
		Password:  u.Password,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type verificationDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Email      string             `bson:"email"`
	Code       string             `bson:"code"`
	ExpiresAt  time.Time          `bson:"expiresAt"`
	Verified   bool               `bson:"verified"`
	VerifiedAt *time.Time         `bson:"verifiedAt,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func (v verificationDoc) toDomain() *domain.EmailVerification {
	return &domain.EmailVerification{
		ID:         v.ID.Hex(),
		Email:      v.Email,
		Code:       v.Code,
		ExpiresAt:  v.ExpiresAt,
		Verified:   v.Verified,
		VerifiedAt: v.VerifiedAt,
		CreatedAt:  v.CreatedAt,
	}
}

type resetTokenDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId"`
	Token     string             `bson:"token"`
	ExpiresAt time.Time          `bson:"expiresAt"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (t resetTokenDoc) toDomain() *domain.PasswordResetToken {
	return &domain.PasswordResetToken{
		ID:        t.ID.Hex(),
		UserID:    t.UserID.Hex(),
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
}

// reportJoined is a report row with its school, country and continent
// $lookup-ed in. Missing lookups decode as nil and leave the school
// reference unresolved.
type reportJoined struct {
	reportDoc `bson:",inline"`
	School    *schoolDoc    `bson:"school,omitempty"`
	Country   *countryDoc   `bson:"country,omitempty"`
	Continent *continentDoc `bson:"continent,omitempty"`
}

func (r reportJoined) toDomain() domain.Report {
	out := domain.Report{
		ID:               r.ID.Hex(),
		School:           domain.SchoolRef{ID: r.SchoolID.Hex()},
		ExchangeYear:     r.ExchangeYear,
		ExchangeSemester: r.ExchangeSemester,
		Content:          r.Content.toDomain(),
		Hashtags:         r.Hashtags,
		ViewCount:        r.ViewCount,
		LikeCount:        r.LikeCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if out.Hashtags == nil {
		out.Hashtags = []string{}
	}
	for _, u := range r.LikedUsers {
		out.LikedUsers = append(out.LikedUsers, u.Hex())
	}
	if r.School != nil {
		out.School.School = schoolView(*r.School, r.Country, r.Continent)
	}
	return out
}

// schoolJoined is a school row with its country and continent joined in.
type schoolJoined struct {
	schoolDoc `bson:",inline"`
	Country   *countryDoc   `bson:"country,omitempty"`
	Continent *continentDoc `bson:"continent,omitempty"`
}

func (s schoolJoined) toDomain() domain.SchoolView {
	return *schoolView(s.schoolDoc, s.Country, s.Continent)
}

func schoolView(s schoolDoc, country *countryDoc, continent *continentDoc) *domain.SchoolView {
	v := &domain.SchoolView{
		ID:                   s.ID.Hex(),
		Name:                 s.Name,
		NameKor:              s.NameKor,
		City:                 s.City,
		MinCompletedSemester: s.MinCompletedSemester,
		Toefl:                s.Toefl,
		Ielts:                s.Ielts,
		AvailableSemester:    s.AvailableSemester,
		HasDormitory:         s.HasDormitory,
		QsRank:               s.QsRank,
		Personnel:            s.Personnel,
		MinGpa:               s.MinGpa,
		HomepageURL:          s.HomepageURL,
		LanguageRemarks:      s.LanguageRemarks,
	}
	if country != nil {
		v.Country = country.Name
	}
	if continent != nil {
		v.Continent = continent.Name
	}
	return v
}
