package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	server "kuex/internal/adapters/http_server"
	"kuex/internal/adapters/mail"
	"kuex/internal/adapters/observability"
	redisad "kuex/internal/adapters/redis"
	"kuex/internal/app"
	"kuex/internal/shared"
	mongostore "kuex/internal/storage/mongo"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	ctx := context.Background()
	db, disconnect, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = disconnect(context.Background()) }()
	if err := mongostore.EnsureUserIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("user index creation failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	reports := mongostore.NewReportRepo(db)
	schools := mongostore.NewSchoolRepo(db)
	geo := mongostore.NewGeoRepo(db)
	users := mongostore.NewUserRepo(db)
	verifications := mongostore.NewVerificationRepo(db)
	resetTokens := mongostore.NewResetTokenRepo(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	mailer := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.MailPerSec)
	tokens := app.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	handlers := &server.Handlers{
		Reports:   app.NewReportService(reports, schools, geo, cache),
		Schools:   app.NewSchoolService(schools, geo, cache),
		Auth:      app.NewAuthService(users, verifications, resetTokens, mailer, tokens, cfg.EmailDomain, cfg.Dev()),
		Mypage:    app.NewMypageService(users, reports),
		PublicURL: cfg.PublicURL,
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers, tokens)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
