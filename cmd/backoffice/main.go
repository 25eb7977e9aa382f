package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	api "github.com/studyhub-gh/backoffice/internal/api/http"
	"github.com/studyhub-gh/backoffice/internal/auth"
	"github.com/studyhub-gh/backoffice/internal/config"
	"github.com/studyhub-gh/backoffice/internal/db"
	"github.com/studyhub-gh/backoffice/internal/engine"
	"github.com/studyhub-gh/backoffice/internal/repo"
	"github.com/studyhub-gh/backoffice/internal/resource"
	"github.com/studyhub-gh/backoffice/internal/storage"
	"github.com/studyhub-gh/backoffice/internal/upload"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	store := repo.NewSQLRepo(dbh, cfg.DBDriver)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("blob store")
	}

	// --- Engines, one per manager screen ---
	engines := map[resource.Type]*engine.Engine{}
	for _, schema := range resource.Schemas() {
		e := engine.New(schema, store, upload.NewPipeline(bs), log)
		if err := e.Refresh(ctx); err != nil {
			log.Warn().Err(err).Str("resource", string(schema.Type)).Msg("initial refresh failed")
		}
		engines[schema.Type] = e
	}

	authSvc := auth.NewService(cfg.AuthSecret, cfg.AdminUser, cfg.AdminPassHash)
	srv := api.NewServer(engines, store, log)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	// Public directory surface: stored files and download counting.
	r.Route("/assets", func(ar chi.Router) {
		api.MountAssets(ar, bs)
	})
	r.Post("/public/{type}/records/{id}/download", srv.DownloadHandler())

	// Admin managers (protected).
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Route("/api", func(ar chi.Router) {
			srv.Mount(ar)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DBDriver).Msg("listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
