package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"kuex/internal/adapters/observability"
	"kuex/internal/domain"
	"kuex/internal/shared"
	mongostore "kuex/internal/storage/mongo"
)

// seedSchool is one row of the seed file: a school plus the names of its
// country and continent.
type seedSchool struct {
	Continent            string   `json:"continent"`
	Country              string   `json:"country"`
	Name                 string   `json:"name"`
	NameKor              string   `json:"nameKor"`
	City                 string   `json:"city"`
	MinCompletedSemester int      `json:"minCompletedSemester"`
	Toefl                int      `json:"toefl"`
	Ielts                int      `json:"ielts"`
	AvailableSemester    string   `json:"availableSemester"`
	HasDormitory         bool     `json:"hasDormitory"`
	QsRank               *int     `json:"qsRank"`
	Personnel            *int     `json:"personnel"`
	MinGpa               *float64 `json:"minGpa"`
	HomepageURL          string   `json:"homepageUrl"`
	LanguageRemarks      string   `json:"languageRemarks"`
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("file", cfg.SeedFile).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("seed file read failed")
	}
	var rows []seedSchool
	if err := json.Unmarshal(raw, &rows); err != nil {
		log.Fatal().Err(err).Msg("seed file parse failed")
	}

	db, disconnect, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = disconnect(context.Background()) }()
	log.Info().Msg("db ping ok")

	geo := mongostore.NewGeoRepo(db)
	schools := mongostore.NewSchoolRepo(db)

	// Upsert geography serially first so concurrent school upserts only
	// need to look ids up.
	countryIDs := make(map[string]string, 64)
	for _, row := range rows {
		if _, ok := countryIDs[row.Country]; ok {
			continue
		}
		continentID, err := geo.UpsertContinent(ctx, row.Continent)
		if err != nil {
			log.Fatal().Err(err).Str("continent", row.Continent).Msg("continent upsert failed")
		}
		countryID, err := geo.UpsertCountry(ctx, row.Country, continentID)
		if err != nil {
			log.Fatal().Err(err).Str("country", row.Country).Msg("country upsert failed")
		}
		countryIDs[row.Country] = countryID
	}
	log.Info().Int("countries", len(countryIDs)).Msg("geography seeded")

	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	for _, row := range rows {
		row := row

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(row seedSchool) {
			defer wg.Done()
			defer sem.Release(int64(1))

			s := domain.School{
				CountryID:            countryIDs[row.Country],
				Name:                 row.Name,
				NameKor:              row.NameKor,
				City:                 row.City,
				MinCompletedSemester: row.MinCompletedSemester,
				Toefl:                row.Toefl,
				Ielts:                row.Ielts,
				AvailableSemester:    row.AvailableSemester,
				HasDormitory:         row.HasDormitory,
				QsRank:               row.QsRank,
				Personnel:            row.Personnel,
				MinGpa:               row.MinGpa,
				HomepageURL:          row.HomepageURL,
				LanguageRemarks:      row.LanguageRemarks,
			}
			if err := schools.Upsert(ctx, s); err != nil {
				log.Warn().Str("school", row.Name).Err(err).Msg("seed failed")
				return
			}
			log.Info().Str("school", row.Name).Msg("seed ok")
		}(row)
	}

	wg.Wait()
	log.Info().Int("schools", len(rows)).Msg("seeding completed")
}
