package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/adapters/http_server"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/adapters/observability"
	redisad "github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/adapters/redis"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/app"
	"github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/shared"
	mysqlrepo "github.com/DRAGONUber/fa25-cs411-team008-Team8/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL, cfg.MinBathroomAvg)
	rs := app.NewReviewService(repo, cache)
	us := app.NewUserService(repo)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, R: rs, U: us})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
